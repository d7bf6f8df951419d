package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultsAndLoginRoundTrip(t *testing.T) {
	s := New("p/alpha", "root")

	st := s.Snapshot()
	assert.Equal(t, "p/alpha", st.Context)
	assert.Equal(t, "root", st.Collection)
	assert.False(t, st.LoggedIn)

	s.SetLogin("alice")
	st = s.Snapshot()
	assert.True(t, st.LoggedIn)
	assert.Equal(t, "alice", st.User)

	s.ClearLogin()
	st = s.Snapshot()
	assert.False(t, st.LoggedIn)
	assert.Empty(t, st.User)
	assert.Equal(t, "p/alpha", st.Context, "context survives logout")
}

func TestContextSwitchVisibleToReaders(t *testing.T) {
	s := New("p/alpha", "root")
	s.SetContext("p/beta")
	s.SetCollection("c/raw")

	st := s.Snapshot()
	assert.Equal(t, "p/beta", st.Context)
	assert.Equal(t, "c/raw", st.Collection)
}

func TestConcurrentAccess(t *testing.T) {
	s := New("p/alpha", "root")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.SetContext("p/beta")
		}()
		go func() {
			defer wg.Done()
			_ = s.Snapshot()
		}()
	}
	wg.Wait()

	assert.Equal(t, "p/beta", s.Snapshot().Context)
}
