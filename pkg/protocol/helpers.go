package protocol

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewCycleMessage creates a cycle telemetry message
func NewCycleMessage(data CycleData) (*Message, error) {
	return NewMessage(TypeCycle, data)
}

// NewStateMessage creates a driver state message
func NewStateMessage(runID, state string, cycles int) (*Message, error) {
	return NewMessage(TypeState, StateData{
		RunID:  runID,
		State:  state,
		Cycles: cycles,
	})
}

// NewErrorMessage creates an error message
func NewErrorMessage(err error) (*Message, error) {
	return NewMessage(TypeError, ErrorData{Message: err.Error()})
}

// NewCommandMessage creates an operator command message
func NewCommandMessage(linear [3]float64, yawRate, hold float64) (*Message, error) {
	return NewMessage(TypeCommand, CommandData{
		Linear:  linear,
		YawRate: yawRate,
		Hold:    hold,
	})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string, ts int64) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: ts,
	})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetCycleData extracts cycle data from a message
func (m *Message) GetCycleData() (*CycleData, error) {
	var data CycleData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetStateData extracts state data from a message
func (m *Message) GetStateData() (*StateData, error) {
	var data StateData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetErrorData extracts error data from a message
func (m *Message) GetErrorData() (*ErrorData, error) {
	var data ErrorData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetCommandData extracts an operator command from a message
func (m *Message) GetCommandData() (*CommandData, error) {
	var data CommandData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
