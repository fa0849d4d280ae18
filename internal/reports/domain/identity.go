package domain

// SentinelIdentity is the placeholder contact that marks a report as
// anonymous at intake and replaces the contact fields at submission time.
type SentinelIdentity struct {
	Name     string
	Surname  string
	Email    string
	Mobile   string
	Gender   string
	District string
}

// Matches reports whether the supplied contact is the sentinel. The
// comparison is exact: a reporter typing their own data never collides
// with it by accident of casing or whitespace.
func (s SentinelIdentity) Matches(name, surname, email string) bool {
	return name == s.Name && surname == s.Surname && email == s.Email
}
