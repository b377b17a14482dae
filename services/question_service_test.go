package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidyavichar/models"
)

func TestCreateQuestion(t *testing.T) {
	ctx := context.Background()

	t.Run("persists a pending question and bumps counters", func(t *testing.T) {
		f := setup(t)
		class := f.createClass(t, "Compilers")

		q, err := f.questions.CreateQuestion(ctx, student, &CreateQuestionRequest{
			Text:    "  What does an LR parser look ahead at?  ",
			ClassID: class.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, "What does an LR parser look ahead at?", q.Text)
		assert.Equal(t, models.StatusPending, q.Status)
		assert.False(t, q.Deleted)
		assert.Equal(t, student.ID, q.AuthorID)
		assert.Equal(t, student.Name, q.Author)
		assert.Equal(t, class.Name, q.ClassName)

		stored := f.stored(t, class.ID)
		assert.EqualValues(t, 1, stored.TotalQuestions)
		assert.EqualValues(t, 1, stored.PendingQuestions)
	})

	t.Run("validation", func(t *testing.T) {
		f := setup(t)
		class := f.createClass(t, "Compilers")

		_, err := f.questions.CreateQuestion(ctx, student, &CreateQuestionRequest{Text: "  ", ClassID: class.ID})
		requireKind(t, KindInvalidArgument, err)
		assert.EqualError(t, err, "Question text and class ID are required")

		_, err = f.questions.CreateQuestion(ctx, student, &CreateQuestionRequest{Text: "Why?", ClassID: "42"})
		requireKind(t, KindInvalidArgument, err)
		assert.EqualError(t, err, "Invalid class ID format")

		_, err = f.questions.CreateQuestion(ctx, student, &CreateQuestionRequest{Text: "Why?", ClassID: uuid.NewString()})
		requireKind(t, KindInvalidArgument, err)
		assert.EqualError(t, err, "Invalid or inactive class")
	})

	t.Run("duplicate text in the same class", func(t *testing.T) {
		f := setup(t)
		class := f.createClass(t, "Compilers")
		other := f.createClass(t, "Databases")
		f.ask(t, class.ID, "What is a basic block?")

		_, err := f.questions.CreateQuestion(ctx, ta, &CreateQuestionRequest{Text: " What is a basic block? ", ClassID: class.ID})
		requireKind(t, KindConflict, err)
		assert.EqualError(t, err, "Similar question already posted in this class")

		f.ask(t, other.ID, "What is a basic block?")
	})

	t.Run("deleted questions still block reposting by default", func(t *testing.T) {
		f := setup(t)
		class := f.createClass(t, "Compilers")
		q := f.ask(t, class.ID, "What is SSA form?")
		_, err := f.questions.DeleteQuestion(ctx, q.ID)
		require.NoError(t, err)

		_, err = f.questions.CreateQuestion(ctx, student, &CreateQuestionRequest{Text: "What is SSA form?", ClassID: class.ID})
		requireKind(t, KindConflict, err)
	})

	t.Run("deleted questions can be reposted when configured", func(t *testing.T) {
		f := setup(t, WithDedupeIgnoringDeleted(true))
		class := f.createClass(t, "Compilers")
		q := f.ask(t, class.ID, "What is SSA form?")
		_, err := f.questions.DeleteQuestion(ctx, q.ID)
		require.NoError(t, err)

		f.ask(t, class.ID, "What is SSA form?")
	})
}

func TestStatusTransitionsKeepPendingCounter(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	class := f.createClass(t, "Operating Systems")
	start := f.stored(t, class.ID).PendingQuestions

	q := f.ask(t, class.ID, "What causes a page fault?")
	assert.EqualValues(t, start+1, f.stored(t, class.ID).PendingQuestions)

	got := f.setStatus(t, q.ID, models.StatusAnswered)
	assert.Equal(t, models.StatusAnswered, got.Status)
	require.NotNil(t, got.Class)
	assert.Equal(t, class.Name, got.Class.Name)
	assert.Equal(t, class.Subject, got.Class.Subject)
	assert.EqualValues(t, start, f.stored(t, class.ID).PendingQuestions)

	f.setStatus(t, q.ID, models.StatusImportant)
	assert.EqualValues(t, start+1, f.stored(t, class.ID).PendingQuestions)

	// important -> pending keeps it outstanding
	f.setStatus(t, q.ID, models.StatusPending)
	assert.EqualValues(t, start+1, f.stored(t, class.ID).PendingQuestions)

	// same status again changes nothing
	f.setStatus(t, q.ID, models.StatusPending)
	assert.EqualValues(t, start+1, f.stored(t, class.ID).PendingQuestions)

	f.setStatus(t, q.ID, models.StatusImportant)
	deleted, err := f.questions.DeleteQuestion(ctx, q.ID)
	require.NoError(t, err)
	assert.True(t, deleted.Deleted)
	assert.Equal(t, models.StatusImportant, deleted.Status)
	assert.EqualValues(t, start, f.stored(t, class.ID).PendingQuestions)
}

func TestUpdateQuestion(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	class := f.createClass(t, "Networks")
	q := f.ask(t, class.ID, "What is the TCP three way handshake?")

	bad := "resolved"
	_, err := f.questions.UpdateQuestion(ctx, ta, q.ID, &UpdateQuestionRequest{Status: &bad})
	requireKind(t, KindInvalidArgument, err)

	answered := string(models.StatusAnswered)
	_, err = f.questions.UpdateQuestion(ctx, ta, uuid.NewString(), &UpdateQuestionRequest{Status: &answered})
	requireKind(t, KindNotFound, err)

	_, err = f.questions.UpdateQuestion(ctx, ta, "nope", &UpdateQuestionRequest{Status: &answered})
	requireKind(t, KindInvalidArgument, err)

	got, err := f.questions.UpdateQuestion(ctx, ta, q.ID, &UpdateQuestionRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	require.NotNil(t, got.Class)
	assert.Equal(t, class.ID, got.Class.ID)
}

func TestStatusChangeOfDeletedQuestionLeavesCounter(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	class := f.createClass(t, "Networks")
	q := f.ask(t, class.ID, "What does ARP resolve?")
	_, err := f.questions.DeleteQuestion(ctx, q.ID)
	require.NoError(t, err)
	require.EqualValues(t, 0, f.stored(t, class.ID).PendingQuestions)

	got := f.setStatus(t, q.ID, models.StatusAnswered)
	assert.True(t, got.Deleted)
	f.setStatus(t, q.ID, models.StatusPending)
	assert.EqualValues(t, 0, f.stored(t, class.ID).PendingQuestions)
}

func TestDeleteQuestion(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	class := f.createClass(t, "Databases")
	pending := f.ask(t, class.ID, "What is a phantom read?")
	answered := f.ask(t, class.ID, "What is two phase locking?")
	f.setStatus(t, answered.ID, models.StatusAnswered)
	require.EqualValues(t, 1, f.stored(t, class.ID).PendingQuestions)

	_, err := f.questions.DeleteQuestion(ctx, answered.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.stored(t, class.ID).PendingQuestions)

	got, err := f.questions.DeleteQuestion(ctx, pending.ID)
	require.NoError(t, err)
	assert.True(t, got.Deleted)
	assert.Equal(t, pending.Text, got.Text)
	assert.EqualValues(t, 0, f.stored(t, class.ID).PendingQuestions)

	// deleting again is a no-op on the counter
	again, err := f.questions.DeleteQuestion(ctx, pending.ID)
	require.NoError(t, err)
	assert.True(t, again.Deleted)
	assert.EqualValues(t, 0, f.stored(t, class.ID).PendingQuestions)

	_, err = f.questions.DeleteQuestion(ctx, uuid.NewString())
	requireKind(t, KindNotFound, err)
	_, err = f.questions.DeleteQuestion(ctx, "xyz")
	requireKind(t, KindInvalidArgument, err)
}

func TestListQuestionsFilters(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	class := f.createClass(t, "Graphics")
	other := f.createClass(t, "Robotics")

	p := f.ask(t, class.ID, "What is a z-buffer?")
	a := f.ask(t, class.ID, "How does ray marching work?")
	f.setStatus(t, a.ID, models.StatusAnswered)
	i := f.ask(t, class.ID, "What is a BRDF?")
	f.setStatus(t, i.ID, models.StatusImportant)
	d := f.ask(t, class.ID, "What is phong shading?")
	f.setStatus(t, d.ID, models.StatusAnswered)
	_, err := f.questions.DeleteQuestion(ctx, d.ID)
	require.NoError(t, err)
	f.ask(t, other.ID, "What is inverse kinematics?")

	ids := func(qs []models.Question) []string {
		out := make([]string, len(qs))
		for n, q := range qs {
			out[n] = q.ID
		}
		return out
	}

	cases := []struct {
		name  string
		query ListQuestionsQuery
		want  []string
	}{
		{"default hides deleted", ListQuestionsQuery{}, []string{i.ID, a.ID, p.ID}},
		{"all", ListQuestionsQuery{Status: "all"}, []string{i.ID, a.ID, p.ID}},
		{"by status", ListQuestionsQuery{Status: "answered"}, []string{a.ID}},
		{"deleted only", ListQuestionsQuery{Status: "deleted"}, []string{d.ID}},
		{"deleted wins over includeDeleted", ListQuestionsQuery{Status: "deleted", IncludeDeleted: "true"}, []string{d.ID}},
		{"includeDeleted ignores status", ListQuestionsQuery{Status: "pending", IncludeDeleted: "true"}, []string{d.ID, i.ID, a.ID, p.ID}},
		{"includeDeleted must be true", ListQuestionsQuery{IncludeDeleted: "yes"}, []string{i.ID, a.ID, p.ID}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.query.ClassID = class.ID
			qs, err := f.questions.ListQuestions(ctx, student, tc.query)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ids(qs))
			for _, q := range qs {
				require.NotNil(t, q.Class)
				assert.Equal(t, "Graphics", q.Class.Name)
			}
		})
	}

	t.Run("class id is required", func(t *testing.T) {
		_, err := f.questions.ListQuestions(ctx, student, ListQuestionsQuery{})
		requireKind(t, KindInvalidArgument, err)
		_, err = f.questions.ListQuestions(ctx, student, ListQuestionsQuery{ClassID: "graphics"})
		requireKind(t, KindInvalidArgument, err)
	})
}

func TestGetClassQuestionStats(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	class := f.createClass(t, "Theory of Computation")

	stats, err := f.questions.GetClassQuestionStats(ctx, class.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuestionStats{}, stats)

	f.ask(t, class.ID, "Is every regular language context free?")
	a := f.ask(t, class.ID, "What is the pumping lemma?")
	f.setStatus(t, a.ID, models.StatusAnswered)
	d := f.ask(t, class.ID, "Is the halting problem decidable?")
	_, err = f.questions.DeleteQuestion(ctx, d.ID)
	require.NoError(t, err)

	stats, err = f.questions.GetClassQuestionStats(ctx, class.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuestionStats{
		Total:        3,
		Pending:      1,
		Answered:     1,
		Important:    0,
		Deleted:      1,
		PendingTotal: 1,
	}, stats)

	_, err = f.questions.GetClassQuestionStats(ctx, "toc")
	requireKind(t, KindInvalidArgument, err)
}

func TestClearClassQuestions(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	class := f.createClass(t, "Statistics")
	f.ask(t, class.ID, "What is a p-value?")
	a := f.ask(t, class.ID, "What is a confidence interval?")
	f.setStatus(t, a.ID, models.StatusAnswered)
	d := f.ask(t, class.ID, "What is variance?")
	_, err := f.questions.DeleteQuestion(ctx, d.ID)
	require.NoError(t, err)

	_, err = f.questions.ClearClassQuestions(ctx, ta, class.ID)
	requireKind(t, KindForbidden, err)

	cleared, err := f.questions.ClearClassQuestions(ctx, teacher, class.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, cleared)
	assert.EqualValues(t, 0, f.stored(t, class.ID).PendingQuestions)

	live, err := f.questions.ListQuestions(ctx, teacher, ListQuestionsQuery{ClassID: class.ID})
	require.NoError(t, err)
	assert.Empty(t, live)

	_, err = f.questions.ClearClassQuestions(ctx, teacher, uuid.NewString())
	requireKind(t, KindNotFound, err)
}
