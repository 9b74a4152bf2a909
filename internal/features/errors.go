package features

// Client-fault errors short-circuit a prediction before any model state is
// touched. The HTTP layer maps them via the predicates below.

type invalidRequestError struct{ msg string }

func (e invalidRequestError) Error() string { return e.msg }

// ErrInvalidRequest constructs an invalidRequestError.
func ErrInvalidRequest(msg string) error { return invalidRequestError{msg: msg} }

// IsInvalidRequest reports whether err indicates a malformed fixture request.
func IsInvalidRequest(err error) bool {
	_, ok := err.(invalidRequestError)
	return ok
}

type unknownTeamError struct{ name string }

func (e unknownTeamError) Error() string { return "unknown team: " + e.name }

// ErrUnknownTeam constructs an unknownTeamError for the given raw name.
func ErrUnknownTeam(name string) error { return unknownTeamError{name: name} }

// IsUnknownTeam reports whether err indicates a team name that resolved to
// no roster entry.
func IsUnknownTeam(err error) bool {
	_, ok := err.(unknownTeamError)
	return ok
}

type fixtureNotFoundError struct{ msg string }

func (e fixtureNotFoundError) Error() string { return e.msg }

// ErrFixtureNotFound constructs a fixtureNotFoundError.
func ErrFixtureNotFound(msg string) error { return fixtureNotFoundError{msg: msg} }

// IsFixtureNotFound reports whether err indicates a matchup absent from the
// dataset.
func IsFixtureNotFound(err error) bool {
	_, ok := err.(fixtureNotFoundError)
	return ok
}
