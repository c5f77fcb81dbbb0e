package infer

// Reconcile folds per-row classifications into one type per column.
//
// Rows shorter than numColumns are padded with empty cells; extra cells are
// ignored. For each column:
//
//   - empty cells never change the running decision
//   - the first non-empty classification replaces TypeEmpty
//   - TypeText is terminal: once seen, later rows cannot change it
//   - a later TypeText downgrades a numeric or date column to text
//   - TypeNumeric followed by TypeDate becomes date
//   - TypeDate is never reverted to numeric
//
// A column with no non-empty cell in rows stays TypeEmpty, which is why the
// number of sampled rows changes the outcome for sparse columns.
func Reconcile(rows [][]string, numColumns int) []string {
	final := make([]string, numColumns)
	for i := range final {
		final[i] = TypeEmpty
	}

	cells := make([]string, numColumns)
	for _, row := range rows {
		for i := range cells {
			if i < len(row) {
				cells[i] = row[i]
			} else {
				cells[i] = ""
			}
		}

		for i, t := range ClassifyRow(cells) {
			final[i] = fold(final[i], t)
		}
	}
	return final
}

func fold(current, next string) string {
	switch {
	case next == TypeEmpty:
		return current
	case current == TypeEmpty:
		return next
	case current == TypeText:
		return TypeText
	case next == TypeText:
		return TypeText
	case current == TypeNumeric && next == TypeDate:
		return TypeDate
	default:
		return current
	}
}
