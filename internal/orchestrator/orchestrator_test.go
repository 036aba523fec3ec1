package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-mfg/tobacco-aps/internal/db"
	"github.com/veritas-mfg/tobacco-aps/internal/planmodel"
)

type fakeTaskStore struct {
	created    map[string]planmodel.SchedulingTask
	active     *planmodel.SchedulingTask
	completed  *planmodel.SchedulingTask
	cancelErr  error
	cancelled  []string
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{created: make(map[string]planmodel.SchedulingTask)}
}

func (f *fakeTaskStore) CreateSchedulingTask(_ context.Context, taskID, batchID string, flags planmodel.SchedulingFlags) error {
	f.created[taskID] = planmodel.SchedulingTask{TaskID: taskID, BatchID: batchID, Status: planmodel.TaskPending, Flags: flags}
	return nil
}

func (f *fakeTaskStore) GetSchedulingTask(_ context.Context, taskID string) (*planmodel.SchedulingTask, error) {
	t := f.created[taskID]
	return &t, nil
}

func (f *fakeTaskStore) GetActiveTaskForBatch(_ context.Context, _ string) (*planmodel.SchedulingTask, error) {
	return f.active, nil
}

func (f *fakeTaskStore) GetCompletedTaskForFlags(_ context.Context, _ string, _ planmodel.SchedulingFlags) (*planmodel.SchedulingTask, error) {
	return f.completed, nil
}

func (f *fakeTaskStore) CancelSchedulingTask(_ context.Context, taskID, _ string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, taskID)
	return nil
}

func (f *fakeTaskStore) ListSchedulingTasks(_ context.Context, _ db.ListTasksFilter) ([]planmodel.SchedulingTask, error) {
	var out []planmodel.SchedulingTask
	for _, t := range f.created {
		out = append(out, t)
	}
	return out, nil
}

type fakePublisher struct {
	published []string
}

func (f *fakePublisher) Publish(subject string, _ []byte) error {
	f.published = append(f.published, subject)
	return nil
}

func TestStartTask_DispatchesNewTask(t *testing.T) {
	store := newFakeTaskStore()
	pub := &fakePublisher{}
	o := New(store, pub)

	task, err := o.StartTask(context.Background(), StartTaskRequest{BatchID: "B1"})
	require.NoError(t, err)
	assert.Equal(t, "B1", task.BatchID)
	assert.Len(t, pub.published, 1)
	assert.Equal(t, "scheduling.task.start", pub.published[0])
}

func TestStartTask_IdempotentReturnsCompletedTask(t *testing.T) {
	store := newFakeTaskStore()
	store.completed = &planmodel.SchedulingTask{TaskID: "T-OLD", BatchID: "B1", Status: planmodel.TaskCompleted}
	pub := &fakePublisher{}
	o := New(store, pub)

	task, err := o.StartTask(context.Background(), StartTaskRequest{BatchID: "B1"})
	require.NoError(t, err)
	assert.Equal(t, "T-OLD", task.TaskID)
	assert.Empty(t, pub.published)
}

func TestStartTask_ForceRerunBypassesIdempotency(t *testing.T) {
	store := newFakeTaskStore()
	store.completed = &planmodel.SchedulingTask{TaskID: "T-OLD", BatchID: "B1", Status: planmodel.TaskCompleted}
	pub := &fakePublisher{}
	o := New(store, pub)

	task, err := o.StartTask(context.Background(), StartTaskRequest{BatchID: "B1", ForceRerun: true})
	require.NoError(t, err)
	assert.NotEqual(t, "T-OLD", task.TaskID)
	assert.Len(t, pub.published, 1)
}

func TestStartTask_RejectsWhenAlreadyRunning(t *testing.T) {
	store := newFakeTaskStore()
	store.active = &planmodel.SchedulingTask{TaskID: "T-RUNNING", BatchID: "B1", Status: planmodel.TaskRunning}
	pub := &fakePublisher{}
	o := New(store, pub)

	_, err := o.StartTask(context.Background(), StartTaskRequest{BatchID: "B1"})
	require.Error(t, err)
	var taskErr *TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Equal(t, KindTaskAlreadyRunning, taskErr.Kind)
}

func TestCancelTask_BroadcastsCancellation(t *testing.T) {
	store := newFakeTaskStore()
	pub := &fakePublisher{}
	o := New(store, pub)

	err := o.CancelTask(context.Background(), "T1", "user requested")
	require.NoError(t, err)
	assert.Equal(t, []string{"T1"}, store.cancelled)
	require.Len(t, pub.published, 1)
	assert.Equal(t, "scheduling.task.cancel.T1", pub.published[0])
}
