package ipsmap

// MergeFacilities unions the college and lycée tables (colleges first, source
// order kept) and inner-joins the union with the directory on UAI. Rows with
// no directory entry are dropped. Duplicates across the two registries are
// kept as they are.
//
// A non-empty union that matches no directory entry at all is reported as
// ErrJoinIntegrity: it means the identifiers do not share a format.
func MergeFacilities(colleges, lycees []Facility, directory []DirectoryEntry) ([]Facility, error) {
	byUAI := make(map[string]DirectoryEntry, len(directory))
	for _, e := range directory {
		byUAI[e.UAI] = e
	}

	union := make([]Facility, 0, len(colleges)+len(lycees))
	union = append(union, colleges...)
	union = append(union, lycees...)

	merged := make([]Facility, 0, len(union))
	for _, f := range union {
		e, ok := byUAI[f.UAI]
		if !ok {
			continue
		}
		f.Directory = e
		if e.Name != "" {
			f.Name = e.Name
		}
		merged = append(merged, f)
	}

	if len(union) > 0 && len(directory) > 0 && len(merged) == 0 {
		return nil, joinErrorf("none of %d facilities matched the %d directory entries on uai", len(union), len(directory))
	}
	return merged, nil
}
