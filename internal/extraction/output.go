package extraction

// OutputKind tells which variant an Output carries.
type OutputKind int

const (
	// KindScored is a result produced by an extractor together with its
	// self-reported confidence, evidence and notes.
	KindScored OutputKind = iota + 1
	// KindBare is a record supplied directly (fixtures, manual entry) with no
	// extraction metadata.
	KindBare
)

func (k OutputKind) String() string {
	switch k {
	case KindScored:
		return "scored"
	case KindBare:
		return "bare"
	}
	return "unknown"
}

// Output is what crosses the boundary between extraction and the
// consistency check. Build it with Scored or Bare; consumers switch on Kind
// instead of probing the value's shape.
type Output struct {
	Kind       OutputKind
	Record     Record
	Confidence float64
	Evidence   map[string][]string
	Notes      []string
	// Model identifies the extractor that produced the record, if any.
	Model string
}

// Scored wraps an extractor result.
func Scored(rec Record, confidence float64, model string) Output {
	return Output{Kind: KindScored, Record: rec, Confidence: confidence, Model: model}
}

// Bare wraps a record that did not come from an extractor.
func Bare(rec Record) Output {
	return Output{Kind: KindBare, Record: rec}
}

// Data returns the typed record regardless of the variant.
func (o Output) Data() Record {
	switch o.Kind {
	case KindScored, KindBare:
		return o.Record
	}
	return nil
}
