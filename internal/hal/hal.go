// Package hal contains the host adapters the machine runs on: an SDL window,
// a raw terminal and a headless sink.
package hal

import (
	"errors"
	"time"

	"github.com/kapitanov/chip8/internal/vm"
)

var (
	ErrReboot = errors.New("reboot")
	ErrQuit   = errors.New("quit")
	ErrPause  = errors.New("pause")
)

// Physical                Logical
// ================        =================
// | 1 | 2 | 3 | 4 |       | 1 | 2 | 3 | C |
// | q | w | e | r |       | 4 | 5 | 6 | D |
// | a | s | d | f |  <=>  | 7 | 8 | 9 | E |
// | z | x | c | v |       | A | 0 | B | F |
// ================        =================
var keyLayout = map[rune]vm.Key{
	'1': vm.Key1, '2': vm.Key2, '3': vm.Key3, '4': vm.KeyC,
	'q': vm.Key4, 'w': vm.Key5, 'e': vm.Key6, 'r': vm.KeyD,
	'a': vm.Key7, 's': vm.Key8, 'd': vm.Key9, 'f': vm.KeyE,
	'z': vm.KeyA, 'x': vm.Key0, 'c': vm.KeyB, 'v': vm.KeyF,
}

// KeyForRune maps a character of the physical layout to a keypad key. Upper
// case letters are accepted.
func KeyForRune(r rune) (vm.Key, bool) {
	if r >= 'A' && r <= 'Z' {
		r += 'a' - 'A'
	}
	key, ok := keyLayout[r]
	return key, ok
}

// Pacer spaces frames a fixed duration apart. A host that falls more than a
// frame behind starts over from the current time instead of bursting.
type Pacer struct {
	frame time.Duration
	next  time.Time
	sleep func(time.Duration)
	now   func() time.Time
}

func NewPacer(frame time.Duration) *Pacer {
	return &Pacer{
		frame: frame,
		sleep: time.Sleep,
		now:   time.Now,
	}
}

func (p *Pacer) Wait() {
	if p.frame <= 0 {
		return
	}

	now := p.now()
	if p.next.IsZero() || now.Sub(p.next) > p.frame {
		p.next = now
	}
	p.next = p.next.Add(p.frame)

	if d := p.next.Sub(now); d > 0 {
		p.sleep(d)
	}
}
