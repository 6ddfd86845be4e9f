package export

// Dataset defines tabular export content. Rows are keyed by header name so
// renderers stay order-stable regardless of how the rows were assembled.
type Dataset struct {
	Title    string
	Subtitle string
	Headers  []string
	Rows     []map[string]string
}
