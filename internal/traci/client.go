package traci

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
)

// Client is a TraCI connection to a running simulator. It is not safe for
// concurrent use; the comparison runner drives one client from one goroutine.
type Client struct {
	conn net.Conn

	// exited receives the simulator's exit status when the client launched it.
	exited <-chan error

	closeOnce sync.Once
	closeErr  error
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn) *Client {
	return &Client{conn: conn}
}

// Dial connects to a simulator already listening on addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to simulator at %s: %w", addr, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	return NewClient(conn), nil
}

// roundTrip sends a single command and returns a reader positioned after its
// status response.
func (c *Client) roundTrip(id byte, content []byte) (*reader, error) {
	var s storage
	s.writeCommand(id, content)
	if _, err := c.conn.Write(s.message()); err != nil {
		return nil, fmt.Errorf("traci: write command 0x%02x: %w", id, err)
	}

	var header [4]byte
	if _, err := io.ReadFull(c.conn, header[:]); err != nil {
		return nil, fmt.Errorf("traci: read response length: %w", err)
	}
	total := int(binary.BigEndian.Uint32(header[:]))
	if total < 4 {
		return nil, &ProtocolError{Reason: fmt.Sprintf("message length %d", total)}
	}
	body := make([]byte, total-4)
	if _, err := io.ReadFull(c.conn, body); err != nil {
		return nil, fmt.Errorf("traci: read response body: %w", err)
	}

	r := &reader{buf: body}
	if err := r.readStatus(id); err != nil {
		return nil, err
	}
	return r, nil
}

// getVariable issues a get command and returns a reader positioned at the
// value of type valueType.
func (c *Client) getVariable(cmd, variable byte, objectID string, valueType byte) (*reader, error) {
	var content storage
	content.writeByte(variable)
	content.writeString(objectID)

	r, err := c.roundTrip(cmd, content.buf)
	if err != nil {
		return nil, err
	}

	id, _, err := r.readCommandHeader()
	if err != nil {
		return nil, err
	}
	if id != cmd+responseOffset {
		return nil, &ProtocolError{Reason: fmt.Sprintf("response 0x%02x to get command 0x%02x", id, cmd)}
	}
	gotVar, err := r.readByte()
	if err != nil {
		return nil, err
	}
	if gotVar != variable {
		return nil, &ProtocolError{Reason: fmt.Sprintf("variable 0x%02x, expected 0x%02x", gotVar, variable)}
	}
	gotID, err := r.readString()
	if err != nil {
		return nil, err
	}
	if gotID != objectID {
		return nil, &ProtocolError{Reason: fmt.Sprintf("object %q, expected %q", gotID, objectID)}
	}
	if err := r.expectType(valueType); err != nil {
		return nil, err
	}
	return r, nil
}

func (c *Client) getInt(cmd, variable byte, objectID string) (int, error) {
	r, err := c.getVariable(cmd, variable, objectID, typeInteger)
	if err != nil {
		return 0, err
	}
	v, err := r.readInt()
	return int(v), err
}

func (c *Client) getDouble(cmd, variable byte, objectID string) (float64, error) {
	r, err := c.getVariable(cmd, variable, objectID, typeDouble)
	if err != nil {
		return 0, err
	}
	return r.readDouble()
}

func (c *Client) getStringList(cmd, variable byte, objectID string) ([]string, error) {
	r, err := c.getVariable(cmd, variable, objectID, typeStringList)
	if err != nil {
		return nil, err
	}
	return r.readStringList()
}

// Version returns the TraCI API level and the simulator identifier.
func (c *Client) Version() (int, string, error) {
	r, err := c.roundTrip(cmdGetVersion, nil)
	if err != nil {
		return 0, "", err
	}
	id, _, err := r.readCommandHeader()
	if err != nil {
		return 0, "", err
	}
	if id != cmdGetVersion {
		return 0, "", &ProtocolError{Reason: fmt.Sprintf("response 0x%02x to version command", id)}
	}
	api, err := r.readInt()
	if err != nil {
		return 0, "", err
	}
	ident, err := r.readString()
	if err != nil {
		return 0, "", err
	}
	return int(api), ident, nil
}

// Step advances the simulation by one step.
func (c *Client) Step() error {
	var content storage
	content.writeDouble(0)
	r, err := c.roundTrip(cmdSimulationStep, content.buf)
	if err != nil {
		return err
	}
	// The step response lists subscription results; none are requested.
	n, err := r.readInt()
	if err != nil {
		return err
	}
	if n != 0 {
		return &ProtocolError{Reason: fmt.Sprintf("unexpected %d subscription results", n)}
	}
	return nil
}

// VehicleIDs lists the vehicles currently in the network.
func (c *Client) VehicleIDs() ([]string, error) {
	return c.getStringList(cmdGetVehicleVariable, varIDList, "")
}

// WaitingTime returns the time in seconds the vehicle has been waiting.
func (c *Client) WaitingTime(vehicleID string) (float64, error) {
	return c.getDouble(cmdGetVehicleVariable, varWaitingTime, vehicleID)
}

// LaneIDs lists every lane in the network.
func (c *Client) LaneIDs() ([]string, error) {
	return c.getStringList(cmdGetLaneVariable, varIDList, "")
}

// LaneVehicleCount returns the number of vehicles on the lane in the last step.
func (c *Client) LaneVehicleCount(laneID string) (int, error) {
	return c.getInt(cmdGetLaneVariable, varLastStepVehicleNumber, laneID)
}

// ArrivedCount returns the number of vehicles that reached their destination
// during the last step.
func (c *Client) ArrivedCount() (int, error) {
	return c.getInt(cmdGetSimulationVariable, varArrivedNumber, "")
}

// TrafficLightIDs lists every traffic light controller.
func (c *Client) TrafficLightIDs() ([]string, error) {
	return c.getStringList(cmdGetTrafficLightVariable, varIDList, "")
}

// Phase returns the index of the controller's current phase.
func (c *Client) Phase(tlID string) (int, error) {
	return c.getInt(cmdGetTrafficLightVariable, varCurrentPhase, tlID)
}

// ControlledLanes returns the lanes controlled by the traffic light, one entry
// per controlled link.
func (c *Client) ControlledLanes(tlID string) ([]string, error) {
	return c.getStringList(cmdGetTrafficLightVariable, varControlledLanes, tlID)
}

// SetPhaseDuration sets the remaining duration of the current phase.
func (c *Client) SetPhaseDuration(tlID string, seconds float64) error {
	var content storage
	content.writeByte(varPhaseDuration)
	content.writeString(tlID)
	content.writeByte(typeDouble)
	content.writeDouble(seconds)
	_, err := c.roundTrip(cmdSetTrafficLightVariable, content.buf)
	return err
}

// Close ends the simulation, closes the connection and waits for a launched
// simulator process to exit.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		_, err := c.roundTrip(cmdClose, nil)
		if cerr := c.conn.Close(); err == nil {
			err = cerr
		}
		if c.exited != nil {
			if werr := <-c.exited; err == nil && werr != nil {
				err = fmt.Errorf("simulator exited: %w", werr)
			}
		}
		c.closeErr = err
	})
	return c.closeErr
}
