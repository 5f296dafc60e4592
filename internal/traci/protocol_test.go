package traci

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCommand_ShortFrame(t *testing.T) {
	var s storage
	s.writeCommand(cmdSimulationStep, []byte{1, 2, 3})
	assert.Equal(t, []byte{5, cmdSimulationStep, 1, 2, 3}, s.buf)

	msg := s.message()
	assert.Equal(t, []byte{0, 0, 0, 9}, msg[:4])
}

func TestWriteCommand_LongFrame(t *testing.T) {
	content := bytes.Repeat([]byte{0xAB}, 300)
	var s storage
	s.writeCommand(cmdGetLaneVariable, content)

	r := &reader{buf: s.buf}
	id, n, err := r.readCommandHeader()
	require.NoError(t, err)
	assert.Equal(t, cmdGetLaneVariable, id)
	assert.Equal(t, 300, n)
	assert.Equal(t, byte(0), s.buf[0])
}

func TestReader_Values(t *testing.T) {
	var s storage
	s.writeInt(-7)
	s.writeDouble(2.25)
	s.writeString("veh0")
	s.writeStringList([]string{"a", "bc"})

	r := &reader{buf: s.buf}
	i, err := r.readInt()
	require.NoError(t, err)
	assert.Equal(t, int32(-7), i)

	d, err := r.readDouble()
	require.NoError(t, err)
	assert.Equal(t, 2.25, d)

	str, err := r.readString()
	require.NoError(t, err)
	assert.Equal(t, "veh0", str)

	list, err := r.readStringList()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "bc"}, list)

	assert.Equal(t, 0, r.remaining())
}

func TestReader_Truncated(t *testing.T) {
	tests := []struct {
		name string
		read func(r *reader) error
		buf  []byte
	}{
		{"byte", func(r *reader) error { _, err := r.readByte(); return err }, nil},
		{"int", func(r *reader) error { _, err := r.readInt(); return err }, []byte{0, 0}},
		{"double", func(r *reader) error { _, err := r.readDouble(); return err }, []byte{0, 0, 0, 0}},
		{"string", func(r *reader) error { _, err := r.readString(); return err }, []byte{0, 0, 0, 5, 'a'}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.read(&reader{buf: tc.buf})
			assert.True(t, errors.Is(err, ErrShortMessage), "got %v", err)
		})
	}
}

func TestReadStatus(t *testing.T) {
	var s storage
	status(&s, cmdClose, StatusOK, "")
	r := &reader{buf: s.buf}
	assert.NoError(t, r.readStatus(cmdClose))

	s = storage{}
	status(&s, cmdClose, StatusOK, "")
	r = &reader{buf: s.buf}
	var perr *ProtocolError
	assert.ErrorAs(t, r.readStatus(cmdSimulationStep), &perr)
}

func TestExpectType(t *testing.T) {
	r := &reader{buf: []byte{typeDouble}}
	err := r.expectType(typeInteger)
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.True(t, strings.Contains(perr.Error(), "0x0b"))
}

func TestLaunchOptions_Args(t *testing.T) {
	opts := LaunchOptions{Binary: "sumo", ConfigFile: "Test_Traffic.sumocfg", ExtraArgs: []string{"--seed", "42"}}
	assert.Equal(t,
		[]string{"-c", "Test_Traffic.sumocfg", "--no-step-log", "true", "--remote-port", "8813", "--seed", "42"},
		opts.Args(8813))
}

func TestLaunch_MissingBinary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	_, err := Launch(ctx, LaunchOptions{Binary: "definitely-not-a-simulator-binary", ConfigFile: "x.sumocfg"})
	assert.Error(t, err)

	_, err = Launch(ctx, LaunchOptions{})
	assert.Error(t, err)
}
