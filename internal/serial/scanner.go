// Package serial reads attendance codes from a 2D-code scanner attached as
// a serial device. Scanners in this mode type each decoded code followed
// by CR and/or LF.
package serial

import (
	"bufio"
	"bytes"
	"io"
	"sync"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/buckleypaul/rollcall/internal/attendance"
	"github.com/buckleypaul/rollcall/internal/errors"
	"github.com/buckleypaul/rollcall/internal/logger"
)

// DefaultBaudRate suits most handheld scanners.
const DefaultBaudRate = 9600

// CodeScannedMsg carries one decoded code.
type CodeScannedMsg struct {
	Code string
	Port string
}

type openFunc func(name string, mode *serial.Mode) (io.ReadWriteCloser, error)

func openPort(name string, mode *serial.Mode) (io.ReadWriteCloser, error) {
	return serial.Open(name, mode)
}

// Scanner manages the connection to one scanner port.
type Scanner struct {
	port     io.ReadWriteCloser
	portName string
	baudRate int
	mu       sync.Mutex
	running  bool
	codes    chan string
	done     chan struct{}
	open     openFunc
	log      *zap.SugaredLogger
}

// NewScanner creates a disconnected Scanner.
func NewScanner() *Scanner {
	return &Scanner{
		codes: make(chan string, 16),
		done:  make(chan struct{}),
		open:  openPort,
		log:   logger.ComponentLogger("scanner"),
	}
}

// Connect opens portName and starts delivering codes on Codes.
func (s *Scanner) Connect(portName string, baudRate int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.disconnectLocked()
	}
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}

	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := s.open(portName, mode)
	if err != nil {
		return errors.Wrapf(err, "open %s", portName)
	}

	s.port = port
	s.portName = portName
	s.baudRate = baudRate
	s.running = true
	s.done = make(chan struct{})

	s.log.Infow("scanner connected", logger.FieldPort, portName, "baud", baudRate)
	go s.readLoop(port, portName, s.done)
	return nil
}

// Disconnect closes the port.
func (s *Scanner) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnectLocked()
}

func (s *Scanner) disconnectLocked() {
	if !s.running {
		return
	}
	s.running = false
	if s.port != nil {
		s.port.Close()
	}
	close(s.done)
	s.log.Infow("scanner disconnected", logger.FieldPort, s.portName)
}

// Codes returns the channel that receives decoded codes.
func (s *Scanner) Codes() <-chan string {
	return s.codes
}

// Connected returns whether the scanner is connected.
func (s *Scanner) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// PortName returns the port of the current or last connection.
func (s *Scanner) PortName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.portName
}

func (s *Scanner) readLoop(r io.Reader, portName string, done <-chan struct{}) {
	sc := bufio.NewScanner(r)
	sc.Split(scanCodeLines)
	for sc.Scan() {
		code, ok := attendance.NormalizeIdentifier(sc.Text())
		if !ok {
			continue
		}
		select {
		case <-done:
			return
		case s.codes <- code:
		default:
			s.log.Warnw("dropping scanned code, consumer is behind", logger.FieldPort, portName)
		}
	}
	if err := sc.Err(); err != nil {
		select {
		case <-done:
		default:
			s.log.Warnw("scanner read failed", logger.FieldPort, portName, logger.FieldError, err)
		}
	}
}

// scanCodeLines splits on CR, LF or CRLF.
func scanCodeLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		j := i + 1
		if data[i] == '\r' && j < len(data) && data[j] == '\n' {
			j++
		}
		return j, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
