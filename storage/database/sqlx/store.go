package sqlxstore

import (
	"context"
	"database/sql"
	"encoding/json"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorly/core"
	"github.com/trezcool/tutorly/core/record"
)

const recordsTable = "records"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store is a record.Store persisting every collection in a single PostgreSQL JSONB table.
type Store struct {
	db *sqlx.DB
}

var _ record.Store = (*Store)(nil)

func NewStore(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres")}
}

func (s *Store) Create(ctx context.Context, collection string, data record.Doc) (string, error) {
	doc := record.Clone(data)
	id := uuid.New().String()
	now := record.Now()
	doc[record.FieldID] = id
	doc[record.FieldCreatedAt] = record.Timestamp(now)

	raw, err := json.Marshal(doc)
	if err != nil {
		return "", core.NewWriteError("create", collection, err)
	}

	q, args, err := psql.Insert(recordsTable).
		Columns("collection", "id", "data", "created_at", "updated_at").
		Values(collection, id, types.JSONText(raw), now, now).
		ToSql()
	if err != nil {
		return "", core.NewWriteError("create", collection, errors.Wrap(err, "building query"))
	}
	if _, err = s.db.ExecContext(ctx, q, args...); err != nil {
		return "", core.NewWriteError("create", collection, err)
	}
	return id, nil
}

func (s *Store) patchQuery(collection, id string, patch record.Doc) (sq.UpdateBuilder, error) {
	doc := record.Clone(patch)
	delete(doc, record.FieldID)
	now := record.Now()
	doc[record.FieldUpdatedAt] = record.Timestamp(now)

	raw, err := json.Marshal(doc)
	if err != nil {
		return sq.UpdateBuilder{}, err
	}
	return psql.Update(recordsTable).
		Set("data", sq.Expr("data || ?::jsonb", types.JSONText(raw))).
		Set("updated_at", now).
		Where(sq.Eq{"collection": collection, "id": id}), nil
}

func (s *Store) Update(ctx context.Context, collection, id string, patch record.Doc) error {
	if !isUUID(id) {
		return core.NewWriteError("update", collection, record.ErrNotFound)
	}
	ub, err := s.patchQuery(collection, id, patch)
	if err != nil {
		return core.NewWriteError("update", collection, err)
	}
	n, err := s.exec(ctx, ub)
	if err != nil {
		return core.NewWriteError("update", collection, err)
	}
	if n == 0 {
		return core.NewWriteError("update", collection, record.ErrNotFound)
	}
	return nil
}

func (s *Store) UpdateIf(ctx context.Context, collection, id string, expect record.Filter, patch record.Doc) (bool, error) {
	if !isUUID(id) {
		return false, core.NewWriteError("update", collection, record.ErrNotFound)
	}
	cond, err := filterSql(expect)
	if err != nil {
		return false, core.NewWriteError("update", collection, err)
	}
	ub, err := s.patchQuery(collection, id, patch)
	if err != nil {
		return false, core.NewWriteError("update", collection, err)
	}
	n, err := s.exec(ctx, ub.Where(cond))
	if err != nil {
		return false, core.NewWriteError("update", collection, err)
	}
	if n > 0 {
		return true, nil
	}

	// nothing updated: either missing or not matching
	if _, err := s.Get(ctx, collection, id); err != nil {
		if errors.Is(err, record.ErrNotFound) {
			return false, core.NewWriteError("update", collection, record.ErrNotFound)
		}
		return false, core.NewWriteError("update", collection, err)
	}
	return false, nil
}

func (s *Store) Increment(ctx context.Context, collection, id, field string, delta float64) error {
	if !isUUID(id) {
		return core.NewWriteError("increment", collection, record.ErrNotFound)
	}
	ub := psql.Update(recordsTable).
		Set("data", sq.Expr(
			"jsonb_set(data, ARRAY[?::text], to_jsonb(COALESCE((data->>?::text)::numeric, 0) + ?), true) || jsonb_build_object(?::text, ?::text)",
			field, field, delta, record.FieldUpdatedAt, record.Timestamp(record.Now()),
		)).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"collection": collection, "id": id})

	n, err := s.exec(ctx, ub)
	if err != nil {
		return core.NewWriteError("increment", collection, err)
	}
	if n == 0 {
		return core.NewWriteError("increment", collection, record.ErrNotFound)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if !isUUID(id) {
		return nil
	}
	q, args, err := psql.Delete(recordsTable).Where(sq.Eq{"collection": collection, "id": id}).ToSql()
	if err != nil {
		return core.NewWriteError("delete", collection, errors.Wrap(err, "building query"))
	}
	if _, err = s.db.ExecContext(ctx, q, args...); err != nil {
		return core.NewWriteError("delete", collection, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (record.Doc, error) {
	if !isUUID(id) {
		return nil, core.NewReadError("get", collection, record.ErrNotFound)
	}
	q, args, err := psql.Select("data").From(recordsTable).
		Where(sq.Eq{"collection": collection, "id": id}).
		ToSql()
	if err != nil {
		return nil, core.NewReadError("get", collection, errors.Wrap(err, "building query"))
	}

	var raw types.JSONText
	if err = s.db.GetContext(ctx, &raw, q, args...); err != nil {
		return nil, core.NewReadError("get", collection, trapNoRowsErr(err))
	}
	doc := make(record.Doc)
	if err = raw.Unmarshal(&doc); err != nil {
		return nil, core.NewReadError("get", collection, err)
	}
	return doc, nil
}

func (s *Store) Query(ctx context.Context, collection string, filters ...record.Filter) ([]record.Doc, error) {
	sb := psql.Select("data").From(recordsTable).Where(sq.Eq{"collection": collection}).OrderBy("seq ASC")
	for _, f := range filters {
		cond, err := filterSql(f)
		if err != nil {
			return nil, core.NewReadError("query", collection, err)
		}
		sb = sb.Where(cond)
	}
	q, args, err := sb.ToSql()
	if err != nil {
		return nil, core.NewReadError("query", collection, errors.Wrap(err, "building query"))
	}

	var rows []types.JSONText
	if err = s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, core.NewReadError("query", collection, err)
	}
	docs := make([]record.Doc, 0, len(rows))
	for _, raw := range rows {
		doc := make(record.Doc)
		if err = raw.Unmarshal(&doc); err != nil {
			return nil, core.NewReadError("query", collection, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) exec(ctx context.Context, ub sq.UpdateBuilder) (int64, error) {
	q, args, err := ub.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// filterSql translates a record.Filter into a JSONB condition.
func filterSql(f record.Filter) (sq.Sqlizer, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	switch f.Op {
	case record.OpArrayContains:
		raw, err := json.Marshal([]interface{}{f.Value})
		if err != nil {
			return nil, err
		}
		return sq.Expr("data -> ?::text @> ?::jsonb", f.Field, types.JSONText(raw)), nil
	default:
		raw, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		return sq.Expr("data -> ?::text = ?::jsonb", f.Field, types.JSONText(raw)), nil
	}
}

func trapNoRowsErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return record.ErrNotFound
	}
	return err
}

// isUUID guards the uuid column against malformed ids coming from URLs.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
