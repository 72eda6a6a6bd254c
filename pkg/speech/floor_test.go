package speech_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"docentgo/pkg/speech"
	"docentgo/pkg/speech/speechtest"
)

func TestFloor_Preemption(t *testing.T) {
	eng := speechtest.New()
	floor := speech.NewFloor(eng)

	var order []string
	floor.OnPreempt(speech.OwnerDocent, func() { order = append(order, "docent-notified") })

	u := speech.NewUtterance("전시 해설", speech.Params{}, func(ev speech.Event) {
		if ev.Kind == speech.EventError {
			order = append(order, "docent-cancelled")
		}
	})
	assert.NoError(t, floor.Speak(speech.OwnerDocent, u))
	assert.True(t, floor.Holds(speech.OwnerDocent))

	floor.Acquire(speech.OwnerChat)
	assert.Equal(t, speech.OwnerChat, floor.Holder())
	assert.Equal(t, []string{"docent-notified", "docent-cancelled"}, order)
	assert.Equal(t, 1, eng.Cancels())
}

func TestFloor_ReacquireDoesNotPreempt(t *testing.T) {
	eng := speechtest.New()
	floor := speech.NewFloor(eng)

	notified := 0
	floor.OnPreempt(speech.OwnerChat, func() { notified++ })
	floor.Acquire(speech.OwnerChat)
	floor.Acquire(speech.OwnerChat)

	assert.Zero(t, notified)
	assert.Zero(t, eng.Cancels())
}

func TestFloor_ControlsRequireHolder(t *testing.T) {
	eng := speechtest.New()
	floor := speech.NewFloor(eng)

	assert.False(t, floor.Pause(speech.OwnerDocent))
	assert.False(t, floor.Resume(speech.OwnerDocent))
	assert.False(t, floor.Cancel(speech.OwnerDocent))

	floor.Acquire(speech.OwnerDocent)
	assert.True(t, floor.Pause(speech.OwnerDocent))
	assert.True(t, floor.Resume(speech.OwnerDocent))
	assert.False(t, floor.Pause(speech.OwnerChat))
	assert.Equal(t, 1, eng.Pauses())
	assert.Equal(t, 1, eng.Resumes())

	floor.Release(speech.OwnerChat)
	assert.True(t, floor.Holds(speech.OwnerDocent), "release by a non-holder is ignored")
	floor.Release(speech.OwnerDocent)
	assert.Equal(t, speech.Owner(""), floor.Holder())
}

func TestFloor_Forget(t *testing.T) {
	eng := speechtest.New()
	floor := speech.NewFloor(eng)

	a := speech.SessionOwner(speech.OwnerDocent, "a")
	b := speech.SessionOwner(speech.OwnerDocent, "b")
	assert.Equal(t, speech.Owner("docent:a"), a)

	notified := 0
	floor.OnPreempt(a, func() { notified++ })
	floor.Acquire(a)
	floor.Forget(a)
	assert.Equal(t, speech.Owner(""), floor.Holder())
	assert.Equal(t, 1, eng.Cancels())

	// A forgotten owner is no longer notified.
	floor.Acquire(a)
	floor.Acquire(b)
	assert.Zero(t, notified)

	// Forgetting a non-holder leaves the floor alone.
	floor.Forget(a)
	assert.Equal(t, b, floor.Holder())
	assert.Equal(t, 2, eng.Cancels())
}
