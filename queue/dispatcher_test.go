package queue

import (
	"testing"

	"github.com/jupark12/go-content-queue/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherBackpressure(t *testing.T) {
	d := NewDispatcher(2)

	require.NoError(t, d.Dispatch(Task{JobID: "a", Kind: models.KindArticle}))
	require.NoError(t, d.Dispatch(Task{JobID: "b", Kind: models.KindProduct}))
	assert.Equal(t, 2, d.Pending())

	err := d.Dispatch(Task{JobID: "c"})
	assert.ErrorIs(t, err, models.ErrQueueFull)

	task := <-d.Tasks()
	assert.Equal(t, "a", task.JobID)
	require.NoError(t, d.Dispatch(Task{JobID: "c"}))
}

func TestDispatcherClose(t *testing.T) {
	d := NewDispatcher(4)
	require.NoError(t, d.Dispatch(Task{JobID: "a"}))

	d.Close()
	d.Close()

	assert.ErrorIs(t, d.Dispatch(Task{JobID: "b"}), models.ErrQueueFull)

	var drained []string
	for task := range d.Tasks() {
		drained = append(drained, task.JobID)
	}
	assert.Equal(t, []string{"a"}, drained)
}
