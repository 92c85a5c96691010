package chunk

// separatorTables encodes the five content-type hierarchies as ordered
// separator lists, coarsest first. Split tries each tier in order and only
// descends to the next once a tier fails to produce any split below budget,
// generalizing the teacher's markdown chunker (try headers, then blank
// lines, then sentence boundaries, then hard split) to the full table.
var separatorTables = map[ContentType][]string{
	ContentTypeMarkdown: {
		"\n#", "\n##", "\n###", // heading markers, by ascending depth
		"\n---\n", "\n***\n", // horizontal rules
		"```\n",     // code fence boundary
		"\n\n",      // blank line
		"\n",        // line break
		". ", "! ", "? ", // sentence enders
		", ", "; ", // clause punctuation
		" ",
	},
	ContentTypeStructured: {
		"\n\n", "\n", ";", ",", " ",
	},
	ContentTypeTabular: {
		"\r\n", "\n", ",", " ",
	},
	ContentTypeLongDoc: {
		"\n\n\n", "\n\n", "\n",
		". ", "! ", "? ",
		", ", "; ",
		" ",
	},
	ContentTypeProse: {
		"\n\n", "\n",
		". ", "! ", "? ",
		", ", "; ",
		" ",
	},
}

func separatorsFor(ct ContentType) []string {
	if seps, ok := separatorTables[ct]; ok {
		return seps
	}
	return separatorTables[ContentTypeProse]
}
