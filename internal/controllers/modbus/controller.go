package modbusctrl

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	mbserver "github.com/tbrandon/mbserver"

	"github.com/kelvinlab/vaporcurve/internal/metrics"
	"github.com/kelvinlab/vaporcurve/internal/ports"
)

// Config for the Modbus controller.
type Config struct {
	ServiceID string
	Addr      string
	UnitID    byte // UnitID (Modbus slave/unit ID). Use an integer 1..247.
}

// Register map. Holding registers select the query, input registers carry
// the answer:
//
//	HR0  compound index into the catalog (write to select)
//	HR1  query pressure in deci-torr (write to select; 7600 = 760.0 torr)
//	IR0  predicted boiling point at the query pressure, centi-°C, signed
//	IR1  reference pressure, deci-torr
//	IR2  reference boiling point, centi-°C, signed
//	IR3  vapor enthalpy, centi-kJ/mol
//	C0   catalog loaded flag (read-only; write single coil is rejected)
const (
	holdingRegisters = 2
	inputRegisters   = 4
)

type Controller struct {
	svc ports.CurveService
	cfg Config

	mu            sync.Mutex
	compoundIndex int
	pressureDeci  uint16

	serv *mbserver.Server
}

func New(svc ports.CurveService, cfg Config) (*Controller, error) {
	if cfg.UnitID == 0 {
		return nil, errors.New("modbus: UnitID is required (non-zero)")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:1502"
	}
	// Query defaults: first compound at standard atmospheric pressure.
	return &Controller{svc: svc, cfg: cfg, pressureDeci: 7600}, nil
}

// Run starts the Modbus server and registers handlers that serve reads
// directly from the curve service. It blocks until ctx is canceled.
func (c *Controller) Run(ctx context.Context) error {
	serv := mbserver.NewServer()
	c.serv = serv

	// Register handlers BEFORE starting the TCP listener to avoid races inside mbserver
	// between handler registration and the server's goroutines.

	// Read Coils (function 1) - coil 0 reports whether the catalog has compounds.
	serv.RegisterFunctionHandler(1, func(s *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
		data := frame.GetData()
		if len(data) < 4 {
			return []byte{}, &mbserver.IllegalDataValue
		}
		start := binary.BigEndian.Uint16(data[0:2])
		qty := binary.BigEndian.Uint16(data[2:4])
		if qty == 0 || qty > 2000 {
			return []byte{}, &mbserver.IllegalDataValue
		}
		// We only expose coil 0 (catalog loaded)
		if start != 0 || qty != 1 {
			return []byte{}, &mbserver.IllegalDataAddress
		}
		coilByte := byte(0)
		if len(c.svc.Names()) > 0 {
			coilByte = 0x01
		}
		// response: byte count (1) + coil bytes
		return []byte{1, coilByte}, &mbserver.Success
	})

	// Read Holding Registers (function 3) - expose the current query selection.
	serv.RegisterFunctionHandler(3, func(s *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
		data := frame.GetData()
		if len(data) < 4 {
			return []byte{}, &mbserver.IllegalDataValue
		}
		start := int(binary.BigEndian.Uint16(data[0:2]))
		qty := int(binary.BigEndian.Uint16(data[2:4]))
		if qty == 0 || qty > 125 {
			return []byte{}, &mbserver.IllegalDataValue
		}
		if start < 0 || start+qty > holdingRegisters {
			return []byte{}, &mbserver.IllegalDataAddress
		}

		c.mu.Lock()
		index, deci := c.compoundIndex, c.pressureDeci
		c.mu.Unlock()

		regs := make([]uint16, 0, qty)
		for i := 0; i < qty; i++ {
			switch start + i {
			case 0:
				regs = append(regs, uint16(index))
			case 1:
				regs = append(regs, deci)
			default:
				return []byte{}, &mbserver.IllegalDataAddress
			}
		}
		return packRegisters(regs), &mbserver.Success
	})

	// Read Input Registers (function 4) - the prediction and reference values
	// for the selected compound.
	serv.RegisterFunctionHandler(4, func(s *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
		data := frame.GetData()
		if len(data) < 4 {
			return []byte{}, &mbserver.IllegalDataValue
		}
		start := int(binary.BigEndian.Uint16(data[0:2]))
		qty := int(binary.BigEndian.Uint16(data[2:4]))
		if qty == 0 || qty > 125 {
			return []byte{}, &mbserver.IllegalDataValue
		}
		if start < 0 || start+qty > inputRegisters {
			return []byte{}, &mbserver.IllegalDataAddress
		}

		c.mu.Lock()
		index, deci := c.compoundIndex, c.pressureDeci
		c.mu.Unlock()

		names := c.svc.Names()
		if index >= len(names) {
			return []byte{}, &mbserver.IllegalDataValue
		}
		comp, err := c.svc.Lookup(names[index])
		if err != nil {
			return []byte{}, &mbserver.IllegalDataValue
		}

		regs := make([]uint16, 0, qty)
		for i := 0; i < qty; i++ {
			switch start + i {
			case 0:
				temp, err := c.svc.BoilingPointAt(comp.Name, float64(deci)/float64(PressureScale))
				metrics.RecordPrediction(comp.Name, err)
				if err != nil {
					return []byte{}, &mbserver.IllegalDataValue
				}
				regs = append(regs, encodeTemp(temp))
			case 1:
				regs = append(regs, encodeUnsigned(comp.RefPressure, PressureScale))
			case 2:
				regs = append(regs, encodeTemp(comp.RefBoilingPoint))
			case 3:
				regs = append(regs, encodeUnsigned(comp.VaporEnthalpy, EnthalpyScale))
			default:
				return []byte{}, &mbserver.IllegalDataAddress
			}
		}
		return packRegisters(regs), &mbserver.Success
	})

	// Write Single Coil (function 5) - the device state is read-only.
	serv.RegisterFunctionHandler(5, func(s *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
		return []byte{}, &mbserver.IllegalFunction
	})

	// Write Single Register (function 6)
	serv.RegisterFunctionHandler(6, func(s *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
		data := frame.GetData()
		if len(data) < 4 {
			return []byte{}, &mbserver.IllegalDataValue
		}
		addr := binary.BigEndian.Uint16(data[0:2])
		value := binary.BigEndian.Uint16(data[2:4])

		if ex := c.writeRegister(addr, value); ex != nil {
			return []byte{}, ex
		}

		// echo request (address + value)
		resp := make([]byte, 4)
		copy(resp, data[0:4])
		return resp, &mbserver.Success
	})

	// Write Multiple Registers (function 16)
	serv.RegisterFunctionHandler(16, func(s *mbserver.Server, frame mbserver.Framer) ([]byte, *mbserver.Exception) {
		d := frame.GetData()
		if len(d) < 5 {
			return []byte{}, &mbserver.IllegalDataValue
		}
		start := binary.BigEndian.Uint16(d[0:2])
		quantity := binary.BigEndian.Uint16(d[2:4])
		byteCount := int(d[4])
		if byteCount != int(quantity)*2 || len(d) < 5+byteCount {
			return []byte{}, &mbserver.IllegalDataValue
		}
		for i := 0; i < int(quantity); i++ {
			addr := start + uint16(i)
			val := binary.BigEndian.Uint16(d[5+i*2 : 5+i*2+2])
			if ex := c.writeRegister(addr, val); ex != nil {
				return []byte{}, ex
			}
		}

		resp := make([]byte, 4)
		binary.BigEndian.PutUint16(resp[0:2], start)
		binary.BigEndian.PutUint16(resp[2:4], quantity)
		return resp, &mbserver.Success
	})

	// Now start listening after all handlers are registered.
	if err := serv.ListenTCP(c.cfg.Addr); err != nil {
		return fmt.Errorf("mbserver listen tcp %s: %w", c.cfg.Addr, err)
	}

	// Block until ctx.Done()
	<-ctx.Done()
	serv.Close()
	return ctx.Err()
}

func (c *Controller) writeRegister(addr, value uint16) *mbserver.Exception {
	switch addr {
	case 0:
		if int(value) >= len(c.svc.Names()) {
			return &mbserver.IllegalDataValue
		}
		c.mu.Lock()
		c.compoundIndex = int(value)
		c.mu.Unlock()
	case 1:
		c.mu.Lock()
		c.pressureDeci = value
		c.mu.Unlock()
	default:
		return &mbserver.IllegalDataAddress
	}
	return nil
}

func packRegisters(regs []uint16) []byte {
	byteCount := len(regs) * 2
	resp := make([]byte, 1+byteCount)
	resp[0] = byte(byteCount)
	for i, r := range regs {
		binary.BigEndian.PutUint16(resp[1+i*2:1+i*2+2], r)
	}
	return resp
}

// Wire scales. Temperatures travel as signed centi-°C, pressures as
// deci-torr, enthalpies as centi-kJ/mol.
const (
	TemperatureScale = 100
	PressureScale    = 10
	EnthalpyScale    = 100
)

func encodeTemp(v float64) uint16 {
	r := min(max(int(math.Round(v*float64(TemperatureScale))), math.MinInt16), math.MaxInt16)
	return uint16(int16(r))
}

func decodeTemp(u uint16) float64 {
	i := int16(u)
	return float64(i) / float64(TemperatureScale)
}

func encodeUnsigned(v float64, scale int) uint16 {
	r := min(max(int(math.Round(v*float64(scale))), 0), math.MaxUint16)
	return uint16(r)
}
