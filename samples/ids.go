package samples

import "strings"

// PatientIDsFromTable reads patient ids from the first column of a table whose
// first row is a header. Blank cells are skipped.
func PatientIDsFromTable(grid [][]string) []string {
	var ids []string
	for i, row := range grid {
		if i == 0 || len(row) == 0 {
			continue
		}
		id := strings.TrimSpace(row[0])
		if id == "" || strings.HasPrefix(id, "Unnamed") || strings.EqualFold(id, "nan") {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
