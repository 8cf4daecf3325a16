// Package session implements the unit of work: an identity map over loaded
// entities, dirty tracking of in-memory changes, and a flush that writes
// everything inside a single transaction.
//
//	s := session.New(p)
//	defer s.Close()
//
//	user := session.NewEntity(users)
//	user.Set("email", "ada@example.com")
//	s.Add(user)
//
//	if err := s.Commit(ctx); err != nil { ... }
//
// Loading the same primary key twice returns the same *Entity, so two
// reads never disagree about one row. Commit flushes inserts parents
// before children along foreign keys, then updates, then deletes in
// reverse dependency order; a failure rolls the whole transaction back and
// keeps every pending change marked dirty for a retry.
//
// Nested scopes map onto SQL savepoints:
//
//	err := s.RunNested(ctx, func(s *session.Session) error {
//		riskyEntity.Set("status", "active")
//		return s.Flush(ctx)
//	})
//
// A nested rollback restores both the database (ROLLBACK TO SAVEPOINT) and
// the session's in-memory state to the point of BeginNested.
//
// Sessions are single-owner: one goroutine drives a session at a time.
package session
