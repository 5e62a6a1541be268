package notify_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/omochice/threadchat/internal/notify"
)

func TestSound_Notify(t *testing.T) {
	tests := []struct {
		name     string
		beepErr  error
		bell     bool
		wantErr  bool
		wantBell string
	}{
		{name: "beep works", bell: true},
		{name: "falls back to bell", beepErr: errors.New("no speaker"), bell: true, wantBell: "\a"},
		{name: "no fallback", beepErr: errors.New("no speaker"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int
			beep := func(freq float64, duration int) error {
				calls++
				if freq <= 0 || duration <= 0 {
					t.Errorf("beep(%v, %d) with non-positive args", freq, duration)
				}
				return tt.beepErr
			}
			var buf bytes.Buffer
			s := notify.NewWithBeeper(beep, nil)
			if tt.bell {
				s = notify.NewWithBeeper(beep, &buf)
			}

			err := s.Notify()
			if (err != nil) != tt.wantErr {
				t.Errorf("Notify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if calls != 1 {
				t.Errorf("beep calls = %d, want 1", calls)
			}
			if buf.String() != tt.wantBell {
				t.Errorf("bell output = %q, want %q", buf.String(), tt.wantBell)
			}
		})
	}
}

func TestSilent_Notify(t *testing.T) {
	if err := (notify.Silent{}).Notify(); err != nil {
		t.Errorf("Notify() error = %v", err)
	}
}
