// Package db owns the PostgreSQL connection pool, the transaction helper every
// multi-statement mutation runs through, and the versioned schema migrations.
//
// # Transactions
//
// WithTx begins a transaction, runs the callback and commits. Any error returned by the
// callback, or a panic inside it, rolls the transaction back before the error reaches the
// caller. Nothing is retried: a failed replace-all must not be re-applied over unknown
// partial state.
//
//	err := db.WithTx(ctx, conn, func(tx *sql.Tx) error {
//		if _, err := tx.ExecContext(ctx, `DELETE FROM role_menus WHERE role_id = $1`, roleID); err != nil {
//			return err
//		}
//		...
//	})
//
// # Migrations
//
// RunMigrations applies every migration returned by Migrations that is not yet recorded
// in schema_migrations, each inside its own transaction.
package db
