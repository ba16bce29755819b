package main

import (
	"fmt"
	"io"
)

const introText = `Étude sur l'abstention et ses variables explicatives
Carte croisée de l'abstention électorale par département et de l'Indice de
Position Sociale (IPS) des collèges et lycées dont l'IPS est inférieur à 100.
`

type creditLink struct {
	Name string
	URL  string
}

var datasetSources = []creditLink{
	{"Annuaire de l'Éducation nationale", "https://data.education.gouv.fr/explore/dataset/fr-en-annuaire-education/table/?disjunctive.type_etablissement&disjunctive.code_postal&disjunctive.nom_commune&disjunctive.code_departement&disjunctive.appartenance_education_prioritaire&disjunctive.libelle_academie&disjunctive.libelle_region&disjunctive.ministere_tutelle"},
	{"Contours des départements français issus d'OpenStreetMap", "https://www.data.gouv.fr/fr/datasets/contours-des-departements-francais-issus-d-openstreetmap/"},
	{"Données des élections agrégées", "https://www.data.gouv.fr/fr/datasets/donnees-des-elections-agregees/"},
	{"IPS des établissements scolaires (collèges & lycées)", "https://data.education.gouv.fr/explore/?sort=modified&q=IPS"},
	{"Bureaux de vote et adresses de leurs électeurs", "https://www.data.gouv.fr/fr/datasets/bureaux-de-vote-et-adresses-de-leurs-electeurs/"},
	{"Communes de france - Base des codes postaux", "https://www.data.gouv.fr/fr/datasets/communes-de-france-base-des-codes-postaux/"},
}

var mapDesigners = []creditLink{
	{"Tahina Duroussy", "https://www.linkedin.com/in/tahinaduroussy/"},
	{"Christelle Emery", "https://www.linkedin.com/in/christelleemery/"},
	{"Thibault Le Balier", "https://www.linkedin.com/in/thibaultlebalier/"},
	{"Armelle Tchoua", "https://www.linkedin.com/in/armelletchoua/"},
	{"Olivier Schneider", "https://www.linkedin.com/in/olivierschneider/"},
	{"Laura Moy", "https://www.linkedin.com/in/lauramoy/"},
	{"Nasstya Fakhreddine", "https://www.linkedin.com/in/nasstyafakhreddine/"},
}

var mapDevelopers = []creditLink{
	{"Anoussone Simuong", "https://www.linkedin.com/in/anousimuong/"},
	{"Melanie Orellana", "https://www.linkedin.com/in/melanieorellana/"},
}

// printIntro writes the introduction shown above the output.
func printIntro(w io.Writer) {
	fmt.Fprint(w, introText+"\n")
}

// printCredits writes the dataset sources and map credits shown below the
// output.
func printCredits(w io.Writer) {
	fmt.Fprintln(w, "\nSources des données :")
	printLinks(w, datasetSources)
	fmt.Fprintln(w, "\nCrédits de la carte")
	fmt.Fprintln(w, "Imaginée par :")
	printLinks(w, mapDesigners)
	fmt.Fprintln(w, "Développée par :")
	printLinks(w, mapDevelopers)
}

func printLinks(w io.Writer, links []creditLink) {
	for _, l := range links {
		fmt.Fprintf(w, "  - %s (%s)\n", l.Name, l.URL)
	}
}
