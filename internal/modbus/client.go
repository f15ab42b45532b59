package modbus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// errEndpointRequired is returned when no endpoint is configured.
var errEndpointRequired = errors.New("modbus endpoint required")

// Config is the TCP connection configuration.
type Config struct {
	// Endpoint is host:port of the Modbus TCP server.
	Endpoint string
	// UnitID is the slave id sent with every request.
	UnitID uint8
	// Timeout bounds each request.
	Timeout time.Duration
}

// Client is a single Modbus TCP connection. Requests are serialized.
type Client struct {
	// mu serializes requests on the shared handler.
	mu sync.Mutex
	// handler owns the TCP connection.
	handler *modbus.TCPClientHandler
	// client builds and parses requests.
	client modbus.Client
}

// Dial connects to the endpoint.
func Dial(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errEndpointRequired
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.UnitID

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Endpoint, err)
	}

	return &Client{
		handler: h,
		client:  modbus.NewClient(h),
	}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.handler.Close()
}

// WriteRegisters writes holding registers starting at addr.
func (c *Client) WriteRegisters(addr uint16, regs []uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.client.WriteMultipleRegisters(addr, uint16(len(regs)), packRegisters(regs))

	return err
}

// ReadHoldingRegisters reads qty holding registers starting at addr.
func (c *Client) ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := c.client.ReadHoldingRegisters(addr, qty)
	if err != nil {
		return nil, err
	}

	return unpackRegisters(raw), nil
}

// ReadInputRegisters reads qty input registers starting at addr.
func (c *Client) ReadInputRegisters(addr, qty uint16) ([]uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := c.client.ReadInputRegisters(addr, qty)
	if err != nil {
		return nil, err
	}

	return unpackRegisters(raw), nil
}

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}

	return out
}

func unpackRegisters(raw []byte) []uint16 {
	out := make([]uint16, len(raw)/2)
	for i := range out {
		out[i] = uint16(raw[2*i])<<8 | uint16(raw[2*i+1])
	}

	return out
}
