package testutil

// personData holds one row of the people fixture.
type personData struct {
	id     int64
	name   *string
	score  *float64
	active *bool
}

// PersonOption configures a person row.
type PersonOption func(*personData)

// Name sets the name column.
func Name(name string) PersonOption {
	return func(p *personData) { p.name = &name }
}

// Score sets the score column.
func Score(score float64) PersonOption {
	return func(p *personData) { p.score = &score }
}

// Active sets the active column.
func Active(active bool) PersonOption {
	return func(p *personData) { p.active = &active }
}
