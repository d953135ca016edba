package console

import (
	"context"
	"sync"

	"kvconsole/entry"
)

// Form is the add/edit dialog. In Editing mode the key is fixed to the
// target's key.
type Form struct {
	saver   Saver
	onSaved func(context.Context)

	mu      sync.Mutex
	mode    FormMode
	key     string
	value   string
	message string
	saving  bool
}

type FormState struct {
	Mode    FormMode
	Key     string
	Value   string
	Message string
	Saving  bool
}

func (s FormState) Open() bool {
	return s.Mode != Closed
}

// NewForm returns a closed form. onSaved runs after every successful save,
// before the form closes; it may be nil.
func NewForm(s Saver, onSaved func(context.Context)) *Form {
	return &Form{saver: s, onSaved: onSaved}
}

func (f *Form) OpenCreate() {
	f.Retarget(nil)
}

func (f *Form) OpenEdit(e entry.Entry) {
	f.Retarget(&e)
}

// Retarget opens the form on target, replacing whatever the fields held, so
// the dialog always shows the latest target. A nil target means a new entry.
func (f *Form) Retarget(target *entry.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.message = ""
	if target == nil {
		f.mode = Creating
		f.key, f.value = "", ""
		return
	}

	f.mode = Editing
	f.key, f.value = target.Key, target.Value
}

func (f *Form) SetKey(k string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.mode {
	case Closed:
		return ErrFormClosed
	case Editing:
		if k != f.key {
			return ErrKeyImmutable
		}
	}

	f.key = k
	return nil
}

func (f *Form) SetValue(v string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.mode == Closed {
		return ErrFormClosed
	}

	f.value = v
	return nil
}

// Submit validates presence, then creates or updates depending on the mode.
// On failure the form stays open with its fields intact.
func (f *Form) Submit(ctx context.Context) error {
	f.mu.Lock()
	if f.mode == Closed {
		f.mu.Unlock()
		return ErrFormClosed
	}
	if f.saving {
		f.mu.Unlock()
		return ErrBusy
	}

	e := entry.Entry{Key: f.key, Value: f.value}
	if err := e.Validate(); err != nil {
		f.message = MsgRequired
		f.mu.Unlock()
		return err
	}

	mode := f.mode
	f.saving = true
	f.message = ""
	f.mu.Unlock()

	var err error
	if mode == Editing {
		err = f.saver.Update(ctx, e)
	} else {
		err = f.saver.Create(ctx, e)
	}

	f.mu.Lock()
	f.saving = false
	if err != nil {
		f.message = MsgSaveFailed
		f.mu.Unlock()
		log.Warningf("Saving %s failed: %v", e.Key, err)
		return err
	}
	f.mu.Unlock()

	if f.onSaved != nil {
		f.onSaved(ctx)
	}
	f.Close()

	return nil
}

func (f *Form) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.mode = Closed
	f.key, f.value = "", ""
	f.message = ""
}

func (f *Form) State() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()

	return FormState{
		Mode:    f.mode,
		Key:     f.key,
		Value:   f.value,
		Message: f.message,
		Saving:  f.saving,
	}
}
