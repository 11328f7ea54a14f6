package game

import "triviahost/core"

// Results of asynchronous work, folded into state by the reducer. Each one
// carries the round it was started for.
type inboxEvent interface {
	roundID() int
}

type roundTag struct{ round int }

func (r roundTag) roundID() int { return r.round }

type questionResult struct {
	roundTag
	question *core.Question
	err      error
}

type speechDone struct {
	roundTag
	speechErr   error
	playbackErr error
}

type sessionResult struct {
	roundTag
	session core.LiveSession
	err     error
}

type liveOpened struct{ roundTag }

type liveMessage struct {
	roundTag
	event core.LiveServerEvent
}

type liveFailed struct {
	roundTag
	err error
}

type liveClosed struct{ roundTag }

type captureFailed struct {
	roundTag
	err error
}

type disposeRequest struct {
	roundTag
	done chan struct{}
}
