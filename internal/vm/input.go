package vm

type Key uint8

const (
	Key0 = Key(iota)
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
)

// InputSource exposes the keypad to the CPU.
type InputSource interface {
	IsKeyPressed(key Key) bool
	// LastFreshInput returns the most recently released key, if one has been
	// latched since the last ConsumeFreshInput.
	LastFreshInput() (Key, bool)
	ConsumeFreshInput()
}

// Keypad tracks the 16 keys and latches key releases as fresh input.
type Keypad struct {
	keys     [KeyCount]bool
	fresh    Key
	hasFresh bool
}

func (k *Keypad) KeyDown(key Key) {
	if key >= KeyCount {
		return
	}
	k.keys[key] = true
}

func (k *Keypad) KeyUp(key Key) {
	if key >= KeyCount {
		return
	}
	k.keys[key] = false
	k.fresh = key
	k.hasFresh = true
}

func (k *Keypad) IsKeyPressed(key Key) bool {
	if key >= KeyCount {
		return false
	}
	return k.keys[key]
}

func (k *Keypad) LastFreshInput() (Key, bool) {
	return k.fresh, k.hasFresh
}

func (k *Keypad) ConsumeFreshInput() {
	k.hasFresh = false
}

func (k *Keypad) Reset() {
	for i := range k.keys {
		k.keys[i] = false
	}
	k.hasFresh = false
}
