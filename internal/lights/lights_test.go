package lights

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/hypebeast/go-osc/osc"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gitlab.com/gomidi/midi/v2"

	"github.com/jscyril/lightshow_player/api"
)

func TestPatchSlots(t *testing.T) {
	p := NewPatch()

	tests := []struct {
		channel string
		want    int
	}{
		{"3", 3},
		{"3.txt", 3},
		{"17", 1},
		{"kick", 0},
		{"snare", 1},
		{"kick", 0},
		{"-2", 2},
	}

	for _, tt := range tests {
		if got := p.Slot(tt.channel); got != tt.want {
			t.Errorf("Slot(%q) = %d, want %d", tt.channel, got, tt.want)
		}
	}

	if n := len(p.Assigned()); n != 6 {
		t.Errorf("Assigned has %d channels, want 6", n)
	}
}

func TestGridBlinks(t *testing.T) {
	now := time.Unix(100, 0)
	g := NewGrid(NewPatch(), 0)
	g.now = func() time.Time { return now }

	g.OnBeatsDue("5", []time.Duration{time.Second})

	boxes := g.Snapshot()
	if !boxes[5].Lit || boxes[5].Channel != "5" || boxes[5].Fired != 1 {
		t.Fatalf("box 5 = %+v, want lit channel 5 fired once", boxes[5])
	}
	for i, b := range boxes {
		if i != 5 && b.Lit {
			t.Errorf("box %d lit unexpectedly", i)
		}
	}

	now = now.Add(DefaultBlink)
	if g.Snapshot()[5].Lit {
		t.Error("box 5 still lit after blink")
	}

	g.Clear()
	if b := g.Snapshot()[5]; b.Fired != 0 || b.Channel != "" {
		t.Errorf("box 5 after Clear = %+v", b)
	}
}

func TestFrameEncode(t *testing.T) {
	f := Frame{Mask: 0x0102, Duration: 50, Seq: 7}
	got := f.Encode()

	want := []byte{SOF0, SOF1, 5, CmdBlink, 0x02, 0x01, 50, 7}
	var cks byte
	for _, b := range want[2:] {
		cks ^= b
	}
	want = append(want, cks)

	if !bytes.Equal(got, want) {
		t.Errorf("Encode() = % x, want % x", got, want)
	}
}

type failWriter struct{}

func (failWriter) Write(p []byte) (int, error) { return 0, errors.New("unplugged") }

func TestSerialSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewSerialSink(&buf, NewPatch(), 20*time.Millisecond, zerolog.Nop())

	s.OnBeatsDue("0", []time.Duration{0})
	s.OnBeatsDue("9", []time.Duration{0})

	out := buf.Bytes()
	if len(out) != 18 {
		t.Fatalf("wrote %d bytes, want two 9 byte frames", len(out))
	}
	if !bytes.Equal(out[:9], Frame{Mask: 1, Duration: 20, Seq: 0}.Encode()) {
		t.Errorf("first frame = % x", out[:9])
	}
	if !bytes.Equal(out[9:], Frame{Mask: 1 << 9, Duration: 20, Seq: 1}.Encode()) {
		t.Errorf("second frame = % x", out[9:])
	}

	var logs bytes.Buffer
	broken := NewSerialSink(failWriter{}, NewPatch(), 0, zerolog.New(&logs))
	broken.OnBeatsDue("1", []time.Duration{0})
	if !bytes.Contains(logs.Bytes(), []byte("serial write failed")) {
		t.Errorf("write error not logged: %s", logs.String())
	}
	if err := broken.Close(); err != nil {
		t.Errorf("Close() on non closer = %v", err)
	}
}

func TestNoteForClamps(t *testing.T) {
	tests := []struct {
		base uint8
		slot int
		want uint8
	}{
		{36, 4, 40},
		{112, 15, 127},
		{120, 10, 127},
		{250, 10, 127},
	}
	for _, tt := range tests {
		if got := noteFor(tt.base, tt.slot); got != tt.want {
			t.Errorf("noteFor(%d, %d) = %d, want %d", tt.base, tt.slot, got, tt.want)
		}
	}
}

func TestMIDISinkNoteOnThenOff(t *testing.T) {
	var (
		mu   sync.Mutex
		sent []midi.Message
	)
	send := func(msg midi.Message) error {
		mu.Lock()
		defer mu.Unlock()
		sent = append(sent, msg)
		return nil
	}

	s := NewMIDISink(send, MIDIOptions{Channel: 2, BaseNote: 36}, NewPatch(), zerolog.Nop())
	var released func()
	var delay time.Duration
	s.after = func(d time.Duration, f func()) {
		delay = d
		released = f
	}

	s.OnBeatsDue("4", []time.Duration{0})
	if len(sent) != 1 {
		t.Fatalf("sent %d messages before release, want 1", len(sent))
	}

	var ch, key, vel uint8
	if !sent[0].GetNoteStart(&ch, &key, &vel) {
		t.Fatalf("first message %v is not a note on", sent[0])
	}
	if ch != 2 || key != 40 || vel != 127 {
		t.Errorf("note on = ch %d key %d vel %d, want 2 40 127", ch, key, vel)
	}
	if delay != DefaultBlink {
		t.Errorf("release after %v, want %v", delay, DefaultBlink)
	}

	released()
	if len(sent) != 2 {
		t.Fatalf("sent %d messages after release, want 2", len(sent))
	}
	if !sent[1].GetNoteEnd(&ch, &key) || key != 40 {
		t.Errorf("second message %v is not note off for key 40", sent[1])
	}
}

type oscRecorder struct {
	packets []osc.Packet
}

func (r *oscRecorder) Send(p osc.Packet) error {
	r.packets = append(r.packets, p)
	return nil
}

func TestOSCSinkMessage(t *testing.T) {
	rec := &oscRecorder{}
	s := NewOSCSink(rec, "", NewPatch(), zerolog.Nop())

	s.OnBeatsDue("7", []time.Duration{10 * time.Microsecond, 20 * time.Microsecond})

	if len(rec.packets) != 1 {
		t.Fatalf("sent %d packets, want 1", len(rec.packets))
	}
	msg, ok := rec.packets[0].(*osc.Message)
	if !ok {
		t.Fatalf("packet is %T, want *osc.Message", rec.packets[0])
	}
	if msg.Address != DefaultOSCAddress {
		t.Errorf("address = %q, want %q", msg.Address, DefaultOSCAddress)
	}

	want := []interface{}{"7", int32(7), int64(10), int64(20)}
	if len(msg.Arguments) != len(want) {
		t.Fatalf("arguments = %v, want %v", msg.Arguments, want)
	}
	for i := range want {
		if msg.Arguments[i] != want[i] {
			t.Errorf("argument %d = %v (%T), want %v (%T)", i, msg.Arguments[i], msg.Arguments[i], want[i], want[i])
		}
	}
}

type publishRecorder struct {
	events []api.AudioEvent
}

func (p *publishRecorder) Publish(e api.AudioEvent) { p.events = append(p.events, e) }

func TestFanoutAndBusSink(t *testing.T) {
	pub := &publishRecorder{}
	grid := NewGrid(NewPatch(), 0)
	var logs bytes.Buffer
	fan := Fanout{grid, BusSink{Bus: pub}, LogSink{Logger: zerolog.New(&logs).Level(zerolog.DebugLevel)}}

	beats := []time.Duration{time.Millisecond, 2 * time.Millisecond}
	fan.OnBeatsDue("2", beats)
	beats[0] = 0

	if grid.Snapshot()[2].Fired != 1 {
		t.Error("grid did not see the firing")
	}
	if len(pub.events) != 1 || pub.events[0].Type != api.EventBeatsDue {
		t.Fatalf("published %v, want one EventBeatsDue", pub.events)
	}
	fired := pub.events[0].Payload.(api.BeatsFired)
	if fired.Channel != "2" || fired.Beats[0] != time.Millisecond {
		t.Errorf("payload = %+v, want channel 2 with its own copy of beats", fired)
	}
	if !bytes.Contains(logs.Bytes(), []byte("beats due")) {
		t.Errorf("log sink wrote %q", logs.String())
	}
}
