package testutil

// WithStandardPeople adds the standard five-row fixture, including nulls
// in every nullable column.
func (b *Builder) WithStandardPeople() *Builder {
	return b.
		WithPerson(1, Name("ada"), Score(9.5), Active(true)).
		WithPerson(2, Name("grace"), Score(7.25), Active(false)).
		WithPerson(3, Score(3)).
		WithPerson(4, Name("linus"), Active(true)).
		WithPerson(5, Name("barbara, l"), Score(-1.5))
}
