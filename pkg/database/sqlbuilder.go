package database

import (
	"github.com/huandu/go-sqlbuilder"
)

// Builders preconfigured for the Postgres flavor so repositories never pass
// the wrong placeholder style to sqlx.

func NewSelectBuilder() *sqlbuilder.SelectBuilder {
	b := sqlbuilder.NewSelectBuilder()
	b.SetFlavor(sqlbuilder.PostgreSQL)
	return b
}

func NewInsertBuilder() *sqlbuilder.InsertBuilder {
	b := sqlbuilder.NewInsertBuilder()
	b.SetFlavor(sqlbuilder.PostgreSQL)
	return b
}

func NewUpdateBuilder() *sqlbuilder.UpdateBuilder {
	b := sqlbuilder.NewUpdateBuilder()
	b.SetFlavor(sqlbuilder.PostgreSQL)
	return b
}

func NewDeleteBuilder() *sqlbuilder.DeleteBuilder {
	b := sqlbuilder.NewDeleteBuilder()
	b.SetFlavor(sqlbuilder.PostgreSQL)
	return b
}
