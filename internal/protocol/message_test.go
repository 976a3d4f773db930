package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRequest(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"action":"join_room","token":"sess_1","room_id":"ABC234"}`))
	require.NoError(t, err)
	assert.Equal(t, ActionJoinRoom, req.Action)
	assert.Equal(t, "sess_1", req.Token)

	var body RoomRequest
	require.NoError(t, req.Bind(&body))
	assert.Equal(t, "ABC234", body.RoomID)
}

func TestDecodeRequestMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `hello`},
		{"array", `["action"]`},
		{"null", `null`},
		{"string", `"login"`},
		{"missing action", `{"token":"x"}`},
		{"action not a string", `{"action":5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRequest([]byte(tt.payload))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestBindWrongFieldType(t *testing.T) {
	req, err := DecodeRequest([]byte(`{"action":"create_room","capacity":"four"}`))
	require.NoError(t, err)

	var body CreateRoomRequest
	assert.ErrorIs(t, req.Bind(&body), ErrMalformed)
}

func TestEncodeRequest(t *testing.T) {
	payload, err := EncodeRequest(ActionSetReady, "sess_2", SetReadyRequest{RoomID: "R1", Ready: true})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(payload, &fields))
	assert.Equal(t, map[string]any{
		"action":  "set_ready",
		"token":   "sess_2",
		"room_id": "R1",
		"ready":   true,
	}, fields)
}

func TestEncodeRequestWithoutToken(t *testing.T) {
	payload, err := EncodeRequest(ActionPing, "", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"ping"}`, string(payload))
}

func TestEncodeRequestRejectsNonObject(t *testing.T) {
	_, err := EncodeRequest(ActionPing, "", []string{"a"})
	assert.Error(t, err)
}

func TestResponseErr(t *testing.T) {
	ok, err := OK(map[string]int{"port": 10002})
	require.NoError(t, err)
	assert.NoError(t, ok.Err())

	var data map[string]int
	require.NoError(t, ok.Decode(&data))
	assert.Equal(t, 10002, data["port"])

	failed := Fail(KindRoomFull, ClassState, "room is full")
	err = failed.Err()
	require.Error(t, err)
	assert.True(t, IsKind(err, KindRoomFull))
	assert.False(t, IsKind(err, KindNotHost))
	assert.False(t, IsKind(errors.New("RoomFull"), KindRoomFull))
	assert.Equal(t, "RoomFull: room is full", err.Error())
	assert.Error(t, failed.Decode(&data))
}

func TestResponseDecodeIntoNil(t *testing.T) {
	ok, err := OK(map[string]string{"room_id": "ABC234"})
	require.NoError(t, err)
	assert.NoError(t, ok.Decode(nil))

	failed := Fail(KindNotHost, ClassState, "only the host may close the room")
	assert.True(t, IsKind(failed.Decode(nil), KindNotHost))
}

func TestResponseJSON(t *testing.T) {
	data, err := json.Marshal(Fail(KindUnknownAction, ClassRequest, "unknown action \"fly\""))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"status": "error",
		"error_kind": "UnknownAction",
		"error_class": "RequestError",
		"message": "unknown action \"fly\""
	}`, string(data))
}
