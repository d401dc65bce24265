package store

import "errors"

// Sentinel errors returned by repository methods to signal well-known failure
// conditions. Callers should use [errors.Is] to match against these values.
var (
	// ErrCircleNotFound is returned when an operation targets a circle that
	// does not exist in the database.
	ErrCircleNotFound = errors.New("circle not found")

	// ErrNotAMember is returned when the acting user is not an active member
	// of the targeted circle.
	ErrNotAMember = errors.New("not a member of the circle")

	// ErrInvitationInvalid is returned when an invitation token is unknown,
	// already consumed, or expired. Terminal for that token.
	ErrInvitationInvalid = errors.New("invitation is invalid")

	// ErrEmailAlreadyExists is returned when an account bootstrap collides
	// with an existing user email.
	ErrEmailAlreadyExists = errors.New("email already exists")

	// ErrNoUserWasFound is returned when a query expected to match at least
	// one user record produces an empty result set.
	ErrNoUserWasFound = errors.New("no user was found")

	// ErrPersistenceFailure is returned when a batch append cannot be
	// committed. The batch is never partially applied: the transaction is
	// rolled back, so the client may safely retry the whole push.
	ErrPersistenceFailure = errors.New("persistence failure")
)

// Low-level database operation errors. These are returned (or wrapped) by
// repository methods when a SQL-level operation fails before any domain logic
// can be applied.
var (
	// ErrBuildingSQLQuery is returned when constructing a parameterised SQL
	// query fails.
	ErrBuildingSQLQuery = errors.New("error building sql query")

	// ErrExecutingQuery is returned when executing a read-only query fails.
	ErrExecutingQuery = errors.New("error executing sql query")

	// ErrBeginningTransaction is returned when the database driver cannot
	// start a new transaction.
	ErrBeginningTransaction = errors.New("failed to begin transaction")

	// ErrCommitingTransaction is returned when committing an open transaction
	// fails. The transaction is considered rolled back at this point.
	ErrCommitingTransaction = errors.New("failed to commit transaction")

	// ErrScanningRow is returned when scanning a single result row fails.
	ErrScanningRow = errors.New("error scanning row")

	// ErrScanningRows is returned when iterating a result set fails.
	ErrScanningRows = errors.New("error scanning rows")
)
