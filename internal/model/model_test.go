package model

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/recordkit/internal/cond"
	"github.com/roach88/recordkit/internal/datasource"
	"github.com/roach88/recordkit/internal/entity"
	"github.com/roach88/recordkit/internal/querybuilder"
	"github.com/roach88/recordkit/internal/testutil"
	"github.com/roach88/recordkit/internal/validation"
)

func schemaOf(table string, cols ...datasource.Column) *datasource.Schema {
	return &datasource.Schema{Table: table, Columns: cols}
}

func pk(name string) datasource.Column {
	return datasource.Column{Name: name, Type: "integer", Key: "primary"}
}

func col(name, typ string) datasource.Column {
	return datasource.Column{Name: name, Type: typ, Null: true}
}

// newMockRegistry returns a registry whose default connection is a sqlmock
// database with exact query matching.
func newMockRegistry(t *testing.T) (*Registry, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := testutil.NewTestLogger(t)
	conns := datasource.NewManager(logger)
	conns.Register(datasource.New(datasource.DefaultName, "mysql", db, datasource.WithLogger(logger)))
	r := NewRegistry(conns,
		WithLogger(logger),
		WithIDGenerator(testutil.NewSequentialUUIDs()),
		WithClock(testutil.NewFixedClock(time.Time{})),
	)
	return r, mock
}

func defineBlog(r *Registry) {
	r.Define(Definition{
		Name:      "Article",
		Recursive: Depth(-1),
		Schema:    schemaOf("articles", pk("id"), col("title", "varchar"), col("body", "text"), col("author_id", "integer")),
		BelongsTo: map[string]AssociationOptions{"Author": {}},
	})
	r.Define(Definition{
		Name:   "Author",
		Schema: schemaOf("authors", pk("id"), col("name", "varchar")),
	})
	r.Define(Definition{
		Name:                "Job",
		Schema:              schemaOf("jobs", pk("id"), col("title", "varchar")),
		HasAndBelongsToMany: map[string]AssociationOptions{"Candidate": {}},
	})
	r.Define(Definition{
		Name:   "Candidate",
		Schema: schemaOf("candidates", pk("id"), col("name", "varchar")),
	})
}

func mustModel(t *testing.T, r *Registry, name string) *Model {
	t.Helper()
	m, err := r.Model(name)
	require.NoError(t, err)
	return m
}

func TestAssociation_Conventions(t *testing.T) {
	r := NewRegistry(datasource.NewManager(nil))
	defineBlog(r)

	job := mustModel(t, r, "Job")
	habtm, ok := job.Association("Candidate")
	require.True(t, ok)
	assert.Equal(t, HasAndBelongsToMany, habtm.Kind)
	assert.Equal(t, "CandidatesJob", habtm.With)
	assert.Equal(t, "candidates_jobs", habtm.JoinTable)
	assert.Equal(t, "job_id", habtm.ForeignKey)
	assert.Equal(t, "candidate_id", habtm.AssociationForeignKey)
	assert.Equal(t, "candidates", habtm.Property)
	assert.Equal(t, Replace, habtm.Mode)
	assert.Equal(t, cond.Raw("CandidatesJob.candidate_id = Candidate.id"), habtm.JoinCondition())

	article := mustModel(t, r, "Article")
	author, ok := article.Association("Author")
	require.True(t, ok)
	assert.Equal(t, "author_id", author.ForeignKey)
	assert.Equal(t, "author", author.Property)
	assert.Equal(t, "Article", author.Owner())
	assert.Equal(t, cond.Raw("Author.id = Article.author_id"), author.JoinCondition())

	comments, err := article.HasMany("Comment", AssociationOptions{Conditions: cond.Conditions{cond.F("approved", true)}})
	require.NoError(t, err)
	assert.Equal(t, "article_id", comments.ForeignKey)
	assert.Equal(t, "comments", comments.Property)
	require.Len(t, comments.Conditions, 2)
	assert.Equal(t, cond.Raw("Comment.article_id = Article.id"), comments.Conditions[0])
	assert.Equal(t, cond.Conditions{cond.F("approved", true)}, comments.UserConditions())

	// redeclaring an alias replaces it, even across kinds
	_, err = article.HasOne("Comment", AssociationOptions{})
	require.NoError(t, err)
	assert.Empty(t, article.Associations(HasMany))
	require.Len(t, article.Associations(HasOne), 1)
	assert.Equal(t, "comment", article.Associations(HasOne)[0].Property)

	_, err = article.BelongsTo("", AssociationOptions{})
	require.Error(t, err)
}

func TestAssociation_TargetPrimaryKey(t *testing.T) {
	r := NewRegistry(datasource.NewManager(nil))
	r.Define(Definition{Name: "Order", BelongsTo: map[string]AssociationOptions{"Customer": {}}})
	r.Define(Definition{Name: "Customer", PrimaryKey: "customer_uid"})

	order := mustModel(t, r, "Order")
	customer, _ := order.Association("Customer")
	assert.Equal(t, cond.Raw("Customer.customer_uid = Order.customer_id"), customer.JoinCondition())
	assert.Equal(t, "orders", order.Table())
}

func TestRegistry_MissingModel(t *testing.T) {
	r := NewRegistry(datasource.NewManager(nil))
	_, err := r.Model("Ghost")
	require.Error(t, err)
	assert.True(t, IsMissingModelError(err))

	r.Define(Definition{Name: "Post", BelongsTo: map[string]AssociationOptions{"Ghost": {}}})
	post := mustModel(t, r, "Post")
	a, _ := post.Association("Ghost")
	_, err = post.target(a)
	require.Error(t, err)
	var me *Error
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "Post", me.Model)
	assert.Equal(t, "Ghost", me.Association)

	assert.Equal(t, []string{"Post"}, r.Names())
}

func TestSave_InsertThenUpdate(t *testing.T) {
	r, mock := newMockRegistry(t)
	defineBlog(r)
	article := mustModel(t, r, "Article")
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `articles` (`title`, `body`) VALUES (:a0, :a1)").
		WithArgs(sql.Named("a0", "Hello"), sql.Named("a1", "World")).
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectCommit()

	e := entity.New("Article")
	e.Set("title", "Hello")
	e.Set("body", "World")
	ok, err := article.Save(ctx, e)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(5), e.Get("id"))
	assert.Equal(t, int64(5), article.ID())
	assert.False(t, e.IsNew())
	assert.False(t, e.IsDirty())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT(*) AS count FROM `articles` AS `Article` WHERE Article.id = :a0").
		WithArgs(sql.Named("a0", int64(5))).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectExec("UPDATE `articles` SET `title` = :a0 WHERE id = :a1").
		WithArgs(sql.Named("a0", "Changed"), sql.Named("a1", int64(5))).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	e.Set("title", "Changed")
	ok, err = article.Save(ctx, e)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_InsertWithoutWritableFields(t *testing.T) {
	r, mock := newMockRegistry(t)
	defineBlog(r)
	author := mustModel(t, r, "Author")

	e := entity.New("Author")
	e.Set("nickname", "annie")
	ok, err := author.Save(context.Background(), e, WithoutTransaction())
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, IsInvalidDataError(err))
	assert.Contains(t, err.Error(), "no writable fields")

	e = entity.New("Author")
	e.Set("name", "Ann")
	ok, err = author.Save(context.Background(), e, WithoutTransaction(), WithFields("id"))
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, IsInvalidDataError(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_PrimaryKeyOnlyIsNoOp(t *testing.T) {
	r, mock := newMockRegistry(t)
	defineBlog(r)
	article := mustModel(t, r, "Article")

	e := entity.Hydrate("Article", []string{"id"}, []any{int64(9)})
	ok, err := article.Save(context.Background(), e)
	require.NoError(t, err)
	assert.True(t, ok)

	fresh := entity.New("Article")
	fresh.Set("id", 10)
	ok, err = article.Save(context.Background(), fresh)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_ValidationFailureRollsBack(t *testing.T) {
	r, mock := newMockRegistry(t)
	defineBlog(r)
	article := mustModel(t, r, "Article")
	article.Validate("title", validation.Rule{Name: "notBlank"})

	mock.ExpectBegin()
	mock.ExpectRollback()

	e := entity.New("Article")
	e.Set("title", "  ")
	ok, err := article.Save(context.Background(), e)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{validation.MessageNotBlank}, e.FieldErrors("title"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_NonScalarColumnInvalidates(t *testing.T) {
	r, mock := newMockRegistry(t)
	defineBlog(r)
	article := mustModel(t, r, "Article")

	e := entity.New("Article")
	e.Set("title", map[string]any{"nested": true})
	ok, err := article.Save(context.Background(), e, WithoutTransaction())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{MessageNonScalar}, e.FieldErrors("title"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveMany_RollsBackOnError(t *testing.T) {
	r, mock := newMockRegistry(t)
	defineBlog(r)
	article := mustModel(t, r, "Article")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `articles` (`title`) VALUES (:a0)").
		WithArgs(sql.Named("a0", "one")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO `articles` (`title`) VALUES (:a0)").
		WithArgs(sql.Named("a0", "two")).
		WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	ok, err := article.SaveMany(context.Background(), []*entity.Entity{
		entity.FromMap("Article", map[string]any{"title": "one"}),
		entity.FromMap("Article", map[string]any{"title": "two"}),
	})
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, datasource.IsDatasourceError(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_UUIDPrimaryKey(t *testing.T) {
	r, mock := newMockRegistry(t)
	r.Define(Definition{
		Name: "Tag",
		Schema: schemaOf("tags",
			datasource.Column{Name: "id", Type: "char", Length: 36, Key: "primary"},
			col("name", "varchar")),
	})
	tag := mustModel(t, r, "Tag")

	mock.ExpectExec("INSERT INTO `tags` (`id`, `name`) VALUES (:t0, :t1)").
		WithArgs(sql.Named("t0", "00000000-0000-0000-0000-000000000001"), sql.Named("t1", "go")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	e := tag.NewEntity(map[string]any{"name": "go"})
	ok, err := tag.Save(context.Background(), e, WithoutTransaction())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", e.Get("id"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_ReplacesLinks(t *testing.T) {
	r, mock := newMockRegistry(t)
	defineBlog(r)
	job := mustModel(t, r, "Job")

	mock.ExpectQuery("SELECT COUNT(*) AS count FROM `jobs` AS `Job` WHERE Job.id = :j0").
		WithArgs(sql.Named("j0", int64(1))).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectExec("DELETE FROM `candidates_jobs` WHERE job_id = :cj0").
		WithArgs(sql.Named("cj0", int64(1))).
		WillReturnResult(sqlmock.NewResult(0, 4))
	for _, id := range []int{2, 3} {
		mock.ExpectExec("INSERT INTO `candidates_jobs` (`job_id`, `candidate_id`) VALUES (:cj0, :cj1)").
			WithArgs(sql.Named("cj0", int64(1)), sql.Named("cj1", id)).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	e := entity.Hydrate("Job", []string{"id"}, []any{int64(1)})
	e.Set("candidates", []any{2, 3, 2})
	ok, err := job.Save(context.Background(), e, WithoutTransaction())
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSave_AppendsMissingLinksOnly(t *testing.T) {
	r, mock := newMockRegistry(t)
	defineBlog(r)
	job := mustModel(t, r, "Job")
	a, _ := job.Association("Candidate")
	a.Mode = Append

	mock.ExpectQuery("SELECT COUNT(*) AS count FROM `jobs` AS `Job` WHERE Job.id = :j0").
		WithArgs(sql.Named("j0", int64(1))).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT CandidatesJob.candidate_id FROM `candidates_jobs` AS `CandidatesJob` WHERE CandidatesJob.job_id = :cj0 AND CandidatesJob.candidate_id IN ( :cj1, :cj2 )").
		WithArgs(sql.Named("cj0", int64(1)), sql.Named("cj1", 2), sql.Named("cj2", 3)).
		WillReturnRows(sqlmock.NewRows([]string{"candidate_id"}).AddRow(int64(2)))
	mock.ExpectExec("INSERT INTO `candidates_jobs` (`job_id`, `candidate_id`) VALUES (:cj0, :cj1)").
		WithArgs(sql.Named("cj0", int64(1)), sql.Named("cj1", 3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	e := entity.Hydrate("Job", []string{"id"}, []any{int64(1)})
	e.Set("candidates", []any{2, 3})
	ok, err := job.Save(context.Background(), e, WithoutTransaction())
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_RemovesLinksThenRow(t *testing.T) {
	r, mock := newMockRegistry(t)
	defineBlog(r)
	job := mustModel(t, r, "Job")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT(*) AS count FROM `jobs` AS `Job` WHERE Job.id = :j0").
		WithArgs(sql.Named("j0", 4)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectExec("DELETE FROM `candidates_jobs` WHERE job_id = :cj0").
		WithArgs(sql.Named("cj0", 4)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM `jobs` WHERE id = :j0").
		WithArgs(sql.Named("j0", 4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := job.Delete(context.Background(), 4)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT(*) AS count FROM `jobs` AS `Job` WHERE Job.id = :j0").
		WithArgs(sql.Named("j0", 5)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectRollback()

	ok, err = job.Delete(context.Background(), 5)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAll_EmptyConditionsDeletesNothing(t *testing.T) {
	r, mock := newMockRegistry(t)
	defineBlog(r)
	article := mustModel(t, r, "Article")

	ok, err := article.DeleteAll(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAll_EmptyGroupDeletesNothing(t *testing.T) {
	r, mock := newMockRegistry(t)
	defineBlog(r)
	article := mustModel(t, r, "Article")

	for _, c := range []cond.Conditions{
		cond.FromMap(map[string]any{"AND": map[string]any{}}),
		{cond.Or(), cond.Block{}},
	} {
		ok, err := article.DeleteAll(context.Background(), c)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAll(t *testing.T) {
	r, mock := newMockRegistry(t)
	defineBlog(r)
	article := mustModel(t, r, "Article")

	mock.ExpectExec("UPDATE `articles` SET `body` = :a0, `title` = UPPER(title) WHERE author_id = :a1").
		WithArgs(sql.Named("a0", ""), sql.Named("a1", 3)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := article.UpdateAll(context.Background(),
		map[string]any{"title": querybuilder.Expr("UPPER(title)"), "body": ""},
		cond.Conditions{cond.F("author_id", 3)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())

	_, err = article.UpdateAll(context.Background(), nil, nil)
	assert.True(t, IsInvalidDataError(err))
}

func TestFind_JoinsBelongsTo(t *testing.T) {
	r, mock := newMockRegistry(t)
	defineBlog(r)
	article := mustModel(t, r, "Article")

	mock.ExpectQuery("SELECT Article.id, Article.title, Article.body, Article.author_id, Author.id AS Author__id, Author.name AS Author__name FROM `articles` AS `Article` LEFT JOIN `authors` AS `Author` ON (Author.id = Article.author_id) WHERE Article.title LIKE :a0 ORDER BY Article.id").
		WithArgs(sql.Named("a0", "G%")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "body", "author_id", "Author__id", "Author__name"}).
			AddRow(int64(1), "Go", "b", int64(7), int64(7), "Ann").
			AddRow(int64(2), "Gleam", "b", nil, nil, nil))

	results, err := article.All(context.Background(), FindOptions{
		Conditions: cond.Conditions{cond.F("title LIKE", "G%")},
		Order:      []string{"id"},
		Recursive:  Depth(0),
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	author, ok := results[0].Get("author").(*entity.Entity)
	require.True(t, ok)
	assert.Equal(t, "Ann", author.Get("name"))
	assert.Equal(t, "Author", author.Source())
	assert.False(t, results[0].IsNew())
	assert.False(t, results[0].IsDirty())
	assert.False(t, results[0].HasProperty("Author__name"))

	assert.True(t, results[1].HasProperty("author"))
	assert.Nil(t, results[1].Get("author"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFind_UnknownAssociatedAlias(t *testing.T) {
	r, _ := newMockRegistry(t)
	defineBlog(r)
	article := mustModel(t, r, "Article")

	_, err := article.All(context.Background(), FindOptions{Associated: []string{"Nope"}})
	require.Error(t, err)
	var me *Error
	require.ErrorAs(t, err, &me)
	assert.Equal(t, ErrCodeInvalidAssociation, me.Code)
}

type recordingCallbacks struct {
	BaseCallbacks
	calls     []string
	abortSave bool
}

func (c *recordingCallbacks) BeforeFind(_ context.Context, _ *Model, opts *FindOptions) bool {
	c.calls = append(c.calls, "beforeFind")
	opts.Conditions = opts.Conditions.Append(cond.F("body", "visible"))
	return true
}

func (c *recordingCallbacks) AfterFind(_ context.Context, _ *Model, results []*entity.Entity, primary bool) []*entity.Entity {
	c.calls = append(c.calls, "afterFind")
	for _, e := range results {
		e.Set("seen", primary)
	}
	return results
}

func (c *recordingCallbacks) BeforeValidate(context.Context, *Model, *entity.Entity) bool {
	c.calls = append(c.calls, "beforeValidate")
	return true
}

func (c *recordingCallbacks) BeforeSave(context.Context, *Model, *entity.Entity) bool {
	c.calls = append(c.calls, "beforeSave")
	return !c.abortSave
}

func TestCallbacks(t *testing.T) {
	r, mock := newMockRegistry(t)
	defineBlog(r)
	article := mustModel(t, r, "Article")
	cb := &recordingCallbacks{abortSave: true}
	article.SetCallbacks(cb)

	e := entity.New("Article")
	e.Set("title", "x")
	ok, err := article.Save(context.Background(), e, WithoutTransaction())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"beforeValidate", "beforeSave"}, cb.calls)

	cb.calls = nil
	mock.ExpectQuery("SELECT Article.* FROM `articles` AS `Article` WHERE Article.body = :a0").
		WithArgs(sql.Named("a0", "visible")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).AddRow(int64(1), "x"))

	results, err := article.All(context.Background(), FindOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, true, results[0].Get("seen"))
	assert.Equal(t, []string{"beforeFind", "afterFind"}, cb.calls)

	cb.calls = nil
	_, err = article.All(context.Background(), FindOptions{SkipCallbacks: true, Fields: []string{"id"}, Limit: 1, Page: 1, Offset: 1})
	require.Error(t, err)
	assert.Empty(t, cb.calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

type vetoCallbacks struct {
	BaseCallbacks
	calls []string
}

func (c *vetoCallbacks) BeforeFind(context.Context, *Model, *FindOptions) bool {
	c.calls = append(c.calls, "beforeFind")
	return false
}

func (c *vetoCallbacks) BeforeDelete(context.Context, *Model, any, bool) bool {
	c.calls = append(c.calls, "beforeDelete")
	return false
}

func TestCallbacks_BeforeFindAbortsWithoutQuery(t *testing.T) {
	r, mock := newMockRegistry(t)
	defineBlog(r)
	article := mustModel(t, r, "Article")
	cb := &vetoCallbacks{}
	article.SetCallbacks(cb)

	e, err := article.First(context.Background(), FindOptions{})
	require.NoError(t, err)
	assert.Nil(t, e)

	all, err := article.All(context.Background(), FindOptions{})
	require.NoError(t, err)
	assert.Empty(t, all)

	assert.Equal(t, []string{"beforeFind", "beforeFind"}, cb.calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCallbacks_BeforeDeleteAbortsWithoutDelete(t *testing.T) {
	r, mock := newMockRegistry(t)
	defineBlog(r)
	article := mustModel(t, r, "Article")
	cb := &vetoCallbacks{}
	article.SetCallbacks(cb)

	// only the existence check runs
	mock.ExpectQuery("SELECT COUNT(*) AS count FROM `articles` AS `Article` WHERE Article.id = :a0").
		WithArgs(sql.Named("a0", 7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))

	ok, err := article.Delete(context.Background(), 7, WithoutTransaction())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"beforeDelete"}, cb.calls)
	require.NoError(t, mock.ExpectationsWereMet())
}
