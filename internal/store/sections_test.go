package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSections_AcquireRelease(t *testing.T) {
	s := NewSections(time.Second)

	release, err := s.Acquire(context.Background(), Products)
	require.NoError(t, err)
	release()

	// Released section can be taken again.
	release, err = s.Acquire(context.Background(), Products)
	require.NoError(t, err)
	release()
}

func TestSections_HeldSectionTimesOut(t *testing.T) {
	s := NewSections(50 * time.Millisecond)

	release, err := s.Acquire(context.Background(), Products)
	require.NoError(t, err)
	defer release()

	_, err = s.Acquire(context.Background(), Products)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestSections_DisjointSetsDoNotSerialize(t *testing.T) {
	s := NewSections(50 * time.Millisecond)

	releaseCarts, err := s.Acquire(context.Background(), Carts)
	require.NoError(t, err)
	defer releaseCarts()

	// A different user's concern, a different collection: must not wait.
	releaseOrders, err := s.Acquire(context.Background(), Orders)
	require.NoError(t, err)
	releaseOrders()
}

func TestSections_OverlappingSetConflicts(t *testing.T) {
	s := NewSections(50 * time.Millisecond)

	release, err := s.Acquire(context.Background(), Products, Carts, Orders)
	require.NoError(t, err)
	defer release()

	_, err = s.Acquire(context.Background(), Carts)
	assert.ErrorIs(t, err, ErrBusy)
}

func TestSections_FailedAcquireReleasesPartialHolds(t *testing.T) {
	s := NewSections(50 * time.Millisecond)

	releaseOrders, err := s.Acquire(context.Background(), Orders)
	require.NoError(t, err)

	// Wants carts+orders; takes carts, times out on orders, must give carts back.
	_, err = s.Acquire(context.Background(), Carts, Orders)
	require.ErrorIs(t, err, ErrBusy)

	releaseCarts, err := s.Acquire(context.Background(), Carts)
	require.NoError(t, err)
	releaseCarts()
	releaseOrders()
}

func TestSections_ReleaseIsIdempotent(t *testing.T) {
	s := NewSections(time.Second)

	release, err := s.Acquire(context.Background(), Products)
	require.NoError(t, err)
	release()
	release() // second call must not release someone else's hold

	release2, err := s.Acquire(context.Background(), Products)
	require.NoError(t, err)
	defer release2()
}

func TestSections_DuplicateNamesAreDeduplicated(t *testing.T) {
	s := NewSections(time.Second)

	release, err := s.Acquire(context.Background(), Carts, Carts)
	require.NoError(t, err)
	release()
}

func TestSections_CrossedOrderDoesNotDeadlock(t *testing.T) {
	s := NewSections(2 * time.Second)
	done := make(chan struct{}, 2)

	for i := 0; i < 2; i++ {
		names := []string{Products, Orders}
		if i == 1 {
			names = []string{Orders, Products}
		}
		go func(names []string) {
			for j := 0; j < 50; j++ {
				release, err := s.Acquire(context.Background(), names...)
				if err == nil {
					release()
				}
			}
			done <- struct{}{}
		}(names)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("deadlock between crossed acquisition orders")
		}
	}
}

func TestSections_NoNamesIsAnError(t *testing.T) {
	s := NewSections(time.Second)
	_, err := s.Acquire(context.Background())
	assert.Error(t, err)
}
