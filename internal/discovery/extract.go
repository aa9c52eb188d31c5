package discovery

// Extractor pulls a Descriptor out of a candidate. found is false when the
// extractor has nothing to say about the candidate.
type Extractor interface {
	Extract(c *Candidate) (d Descriptor, found bool, err error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(c *Candidate) (Descriptor, bool, error)

// Extract implements Extractor.
func (f ExtractorFunc) Extract(c *Candidate) (Descriptor, bool, error) {
	return f(c)
}

// DefaultExtractors returns the structured then legacy extractors.
func DefaultExtractors() []Extractor {
	return []Extractor{ExtractorFunc(structured), ExtractorFunc(legacy)}
}

// structured reads metadata attached to the definition itself.
func structured(c *Candidate) (Descriptor, bool, error) {
	switch c.Kind {
	case KindGo:
		if d, ok := c.Value.(Describer); ok {
			return d.HookDescriptor(), true, nil
		}
		return tagDescriptor(c.Value)

	case KindDescriptorFile:
		d, err := descriptorFromMap(c.Fields)
		return d, true, err

	case KindLua:
		m, ok := c.Script.Global("hook").(map[string]any)
		if !ok {
			return Descriptor{}, false, nil
		}
		d, err := descriptorFromMap(m)
		return d, true, err
	}
	return Descriptor{}, false, nil
}

// legacy parses an annotation comment block.
func legacy(c *Candidate) (Descriptor, bool, error) {
	switch c.Kind {
	case KindGo:
		if doc, ok := c.Value.(Documented); ok {
			return parseAnnotations(doc.Doc())
		}
	case KindLua:
		return parseAnnotations(leadingComment(c.Script.Source))
	}
	return Descriptor{}, false, nil
}

// extract runs the extractors in order and falls back to a synthesized
// name when no extractor supplied one.
func extract(extractors []Extractor, c *Candidate) (Descriptor, error) {
	d := NewDescriptor("")
	for _, ex := range extractors {
		got, found, err := ex.Extract(c)
		if err != nil {
			return got, err
		}
		if found {
			d = got
			break
		}
	}
	if d.Name == "" {
		d.Name = SynthesizeName(c.Ident)
	}
	return d, nil
}
