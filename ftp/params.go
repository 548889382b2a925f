package ftp

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var errBadParameter = errors.New("unrecognized parameter")

// TransferType is the representation type set by TYPE
type TransferType int

const (
	TypeASCII TransferType = iota
	TypeEBCDIC
	TypeImage
	TypeLocal
)

func (t TransferType) String() string {
	switch t {
	case TypeASCII:
		return "A"
	case TypeEBCDIC:
		return "E"
	case TypeImage:
		return "I"
	case TypeLocal:
		return "L"
	}
	return strconv.Itoa(int(t))
}

// FormCode is the format control of the ASCII and EBCDIC types
type FormCode int

const (
	FormNonPrint FormCode = iota
	FormTelnet
	FormASA
)

func (f FormCode) String() string {
	switch f {
	case FormNonPrint:
		return "N"
	case FormTelnet:
		return "T"
	case FormASA:
		return "C"
	}
	return strconv.Itoa(int(f))
}

// TransferMode is set by MODE
type TransferMode int

const (
	ModeStream TransferMode = iota
	ModeBlock
	ModeCompressed
)

func (m TransferMode) String() string {
	return [...]string{"S", "B", "C"}[m]
}

// DataStructure is set by STRU
type DataStructure int

const (
	StructureFile DataStructure = iota
	StructureRecord
	StructurePage
)

func (s DataStructure) String() string {
	return [...]string{"F", "R", "P"}[s]
}

// Representation is the state negotiated with TYPE.
// Form only means something for ASCII and EBCDIC, ByteSize only for Local.
type Representation struct {
	Type     TransferType
	Form     FormCode
	ByteSize int
}

func (r Representation) String() string {
	switch r.Type {
	case TypeASCII, TypeEBCDIC:
		return r.Type.String() + " " + r.Form.String()
	case TypeLocal:
		return r.Type.String() + " " + strconv.Itoa(r.ByteSize)
	}
	return r.Type.String()
}

// ParseType parses the argument of TYPE:
//
//	A [N|T|C]   ASCII, the form resets to N when omitted
//	E [N|T|C]   EBCDIC, same form rule
//	I           Image
//	L <bytes>   Local with a positive byte size
func ParseType(arg string) (Representation, error) {
	fields := strings.Fields(strings.ToUpper(arg))
	if len(fields) == 0 {
		return Representation{}, fmt.Errorf("%w: empty type", errBadParameter)
	}

	switch fields[0] {
	case "A", "E":
		rep := Representation{Type: TypeASCII, Form: FormNonPrint}
		if fields[0] == "E" {
			rep.Type = TypeEBCDIC
		}
		switch len(fields) {
		case 1:
			return rep, nil
		case 2:
			form, err := parseForm(fields[1])
			if err != nil {
				return Representation{}, err
			}
			rep.Form = form
			return rep, nil
		}
	case "I":
		if len(fields) == 1 {
			return Representation{Type: TypeImage}, nil
		}
	case "L":
		if len(fields) == 2 {
			size, err := strconv.Atoi(fields[1])
			if err != nil || size <= 0 {
				return Representation{}, fmt.Errorf("%w: byte size %q", errBadParameter, fields[1])
			}
			return Representation{Type: TypeLocal, ByteSize: size}, nil
		}
	}
	return Representation{}, fmt.Errorf("%w: type %q", errBadParameter, arg)
}

func parseForm(s string) (FormCode, error) {
	switch s {
	case "N":
		return FormNonPrint, nil
	case "T":
		return FormTelnet, nil
	case "C":
		return FormASA, nil
	}
	return 0, fmt.Errorf("%w: form %q", errBadParameter, s)
}

// ParseMode parses the argument of MODE: S, B or C
func ParseMode(arg string) (TransferMode, error) {
	switch strings.ToUpper(strings.TrimSpace(arg)) {
	case "S":
		return ModeStream, nil
	case "B":
		return ModeBlock, nil
	case "C":
		return ModeCompressed, nil
	}
	return 0, fmt.Errorf("%w: mode %q", errBadParameter, arg)
}

// ParseStructure parses the argument of STRU: F, R or P
func ParseStructure(arg string) (DataStructure, error) {
	switch strings.ToUpper(strings.TrimSpace(arg)) {
	case "F":
		return StructureFile, nil
	case "R":
		return StructureRecord, nil
	case "P":
		return StructurePage, nil
	}
	return 0, fmt.Errorf("%w: structure %q", errBadParameter, arg)
}

// ParseRestartOffset parses the argument of REST, a non-negative byte offset
func ParseRestartOffset(arg string) (int64, error) {
	offset, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("%w: restart offset %q", errBadParameter, arg)
	}
	return offset, nil
}
