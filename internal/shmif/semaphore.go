package shmif

import (
	"fmt"
	"hash/fnv"

	"golang.org/x/sys/unix"
)

// Semaphore initial counts per the control protocol: video and audio
// start empty (producer must signal once a frame is ready), the event
// semaphore starts signalled so either side may post the first event
// without waiting on the other.
const (
	initialVideoCount = 0
	initialAudioCount = 0
	initialEventCount = 1
)

// SemaphoreTriple holds the video/audio/event semaphore set backing a
// SharedPage. Go has no portable sem_open without cgo, so the triple
// is implemented as three single-member SysV semaphore sets, each
// keyed by hashing the named semaphore string into a SysV key_t --
// the closest cgo-free analogue to a named semaphore available
// through golang.org/x/sys/unix.
type SemaphoreTriple struct {
	Video, Audio, Event int // SysV semaphore set ids
}

// OpenSemaphoreTriple creates (or, if already present, opens) the
// three semaphores named by suffixing segmentKey with v/a/e.
func OpenSemaphoreTriple(segmentKey string) (SemaphoreTriple, error) {
	videoName, audioName, eventName := SemaphoreNames(segmentKey)

	video, err := createSemaphore(videoName, initialVideoCount)
	if err != nil {
		return SemaphoreTriple{}, fmt.Errorf("shmif: opening video semaphore: %w", err)
	}
	audio, err := createSemaphore(audioName, initialAudioCount)
	if err != nil {
		_ = removeSemaphore(video)
		return SemaphoreTriple{}, fmt.Errorf("shmif: opening audio semaphore: %w", err)
	}
	event, err := createSemaphore(eventName, initialEventCount)
	if err != nil {
		_ = removeSemaphore(video)
		_ = removeSemaphore(audio)
		return SemaphoreTriple{}, fmt.Errorf("shmif: opening event semaphore: %w", err)
	}

	return SemaphoreTriple{Video: video, Audio: audio, Event: event}, nil
}

// Close unlinks all three semaphores. Matching the SharedPage
// teardown contract, this must happen exactly once, when the PR is
// dropped.
func (t SemaphoreTriple) Close() error {
	var firstErr error
	for _, id := range []int{t.Video, t.Audio, t.Event} {
		if err := removeSemaphore(id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Post increments the semaphore, waking one waiter.
func Post(id int) error {
	return unix.Semop(id, []unix.Sembuf{{Semnum: 0, SemOp: 1}})
}

// Wait decrements the semaphore, blocking until it is available.
func Wait(id int) error {
	return unix.Semop(id, []unix.Sembuf{{Semnum: 0, SemOp: -1}})
}

// TryWait attempts a non-blocking decrement, reporting false (no
// error) if the semaphore was not immediately available.
func TryWait(id int) (bool, error) {
	err := unix.Semop(id, []unix.Sembuf{{Semnum: 0, SemOp: -1, SemFlg: unix.IPC_NOWAIT}})
	if err == nil {
		return true, nil
	}
	if err == unix.EAGAIN {
		return false, nil
	}
	return false, err
}

func semKey(name string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	// Mask off the sign bit: SysV key_t is a signed int, and a
	// negative key is legal but needlessly surprising to log.
	return int(h.Sum32() & 0x7fffffff)
}

func createSemaphore(name string, initial int) (int, error) {
	key := semKey(name)
	id, err := unix.Semget(key, 1, unix.IPC_CREAT|unix.IPC_EXCL|0o600)
	if err != nil {
		if err == unix.EEXIST {
			// Stale semaphore from a prior run using the same key; an
			// unlinked producer never got to clean up. Reuse it.
			id, err = unix.Semget(key, 1, 0o600)
			if err != nil {
				return 0, err
			}
			return id, nil
		}
		return 0, err
	}
	if err := unix.SemctlSetval(id, 0, unix.SETVAL, initial); err != nil {
		_ = removeSemaphore(id)
		return 0, err
	}
	return id, nil
}

func removeSemaphore(id int) error {
	_, err := unix.Semctl(id, 0, unix.IPC_RMID)
	return err
}
