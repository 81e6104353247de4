package protocol

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestNewMessage(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    any
		wantErr bool
	}{
		{
			name:    "cycle message",
			msgType: TypeCycle,
			data:    CycleData{RunID: "r1", Cycle: 3, Time: 0.003},
		},
		{
			name:    "command message",
			msgType: TypeCommand,
			data:    CommandData{Linear: [3]float64{0.3, 0, 0}, Hold: 2},
		},
		{
			name:    "nil data",
			msgType: TypePing,
			data:    nil,
		},
		{
			name:    "unmarshalable data",
			msgType: TypeState,
			data:    make(chan int),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.msgType, tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if msg.Type != tt.msgType {
				t.Errorf("NewMessage() type = %v, want %v", msg.Type, tt.msgType)
			}
			if msg.Timestamp == 0 {
				t.Error("NewMessage() timestamp should be set")
			}
			if tt.data == nil && msg.Data != nil {
				t.Error("NewMessage() with nil data should leave Data empty")
			}
		})
	}
}

func TestCycleMessageRoundTrip(t *testing.T) {
	sent := CycleData{
		RunID:     "run-1",
		Cycle:     42,
		Time:      5.25,
		Command:   CommandData{YawRate: 0.4},
		LegStates: []string{"swing", "stance", "stance", "swing"},
		Phases:    []float64{0.1, 0.2, 0.2, 0.1},
		Sources:   []string{"swing", "stance", "stance", "swing"},
		Velocity:  [3]float64{0.1, 0, 0},
	}
	sent.ContactForces[1] = [3]float64{0, 0, 54}

	msg, err := NewCycleMessage(sent)
	if err != nil {
		t.Fatalf("NewCycleMessage: %v", err)
	}
	data, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	parsed, err := ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if parsed.Type != TypeCycle {
		t.Errorf("Type = %s, want cycle", parsed.Type)
	}

	got, err := parsed.GetCycleData()
	if err != nil {
		t.Fatalf("GetCycleData: %v", err)
	}
	if got.Cycle != 42 || got.RunID != "run-1" || got.Time != 5.25 {
		t.Errorf("header mismatch: %+v", got)
	}
	if got.Command.YawRate != 0.4 {
		t.Errorf("Command.YawRate = %v, want 0.4", got.Command.YawRate)
	}
	if got.ContactForces[1][2] != 54 {
		t.Errorf("ContactForces[1] = %v", got.ContactForces[1])
	}
	if len(got.LegStates) != 4 || got.LegStates[0] != "swing" {
		t.Errorf("LegStates = %v", got.LegStates)
	}
}

func TestCycleDataJSONFieldNames(t *testing.T) {
	data, err := json.Marshal(CycleData{RunID: "x"})
	if err != nil {
		t.Fatal(err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"run_id", "cycle", "t", "command", "leg_states", "phases", "sources", "velocity", "contact_forces"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("missing JSON field %q in %s", key, data)
		}
	}
}

func TestStateMessage(t *testing.T) {
	msg, err := NewStateMessage("run-2", "running", 10)
	if err != nil {
		t.Fatal(err)
	}
	state, err := msg.GetStateData()
	if err != nil {
		t.Fatal(err)
	}
	if state.RunID != "run-2" || state.State != "running" || state.Cycles != 10 {
		t.Errorf("GetStateData() = %+v", state)
	}
}

func TestCommandMessage(t *testing.T) {
	msg, err := NewCommandMessage([3]float64{0.2, -0.1, 0}, 0.5, 1.5)
	if err != nil {
		t.Fatal(err)
	}
	cmd, err := msg.GetCommandData()
	if err != nil {
		t.Fatal(err)
	}
	if cmd.Linear != [3]float64{0.2, -0.1, 0} || cmd.YawRate != 0.5 || cmd.Hold != 1.5 || cmd.Clear {
		t.Errorf("GetCommandData() = %+v", cmd)
	}
}

func TestCommandData_OmitsZeroHold(t *testing.T) {
	data, err := json.Marshal(CommandData{})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"linear":[0,0,0],"yaw_rate":0}` {
		t.Errorf("Marshal(CommandData{}) = %s", data)
	}
}

func TestErrorMessage(t *testing.T) {
	msg, err := NewErrorMessage(errors.New("command: invalid"))
	if err != nil {
		t.Fatal(err)
	}
	e, err := msg.GetErrorData()
	if err != nil {
		t.Fatal(err)
	}
	if e.Message != "command: invalid" {
		t.Errorf("Message = %q", e.Message)
	}
}

func TestPingPong(t *testing.T) {
	now := time.Now().UnixMilli()
	ping, err := NewPingMessage("p1", now)
	if err != nil {
		t.Fatal(err)
	}
	pd, err := ping.GetPingData()
	if err != nil {
		t.Fatal(err)
	}
	if pd.ID != "p1" || pd.Timestamp != now {
		t.Errorf("GetPingData() = %+v", pd)
	}

	pong, err := NewPongMessage("p1", now, now+15)
	if err != nil {
		t.Fatal(err)
	}
	var data PongData
	if err := pong.ParseData(&data); err != nil {
		t.Fatal(err)
	}
	if data.LatencyMs != 15 {
		t.Errorf("LatencyMs = %d, want 15", data.LatencyMs)
	}
}

func TestParseMessage_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"invalid json", "not json"},
		{"missing type", `{"ts":1}`},
		{"empty object", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseMessage([]byte(tt.input)); err == nil {
				t.Error("ParseMessage should fail")
			}
		})
	}
}

func TestParseData_NilData(t *testing.T) {
	msg := &Message{Type: TypePing}
	var data PingData
	if err := msg.ParseData(&data); err != nil {
		t.Errorf("ParseData with nil Data should not error: %v", err)
	}
}
