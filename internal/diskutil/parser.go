package diskutil

import (
	"errors"
	"fmt"
	"strings"

	"github.com/er2/macos-utilities/internal/diskutil/types"

	"howett.net/plist"
)

// ToolType identifies the command line tool that produced a piece of output.
type ToolType uint8

const (
	InvalidTool ToolType = iota
	DiskUtilityTool
	HDIUtilTool
)

func (t ToolType) String() string {
	switch t {
	case DiskUtilityTool:
		return "diskutil"
	case HDIUtilTool:
		return "hdiutil"
	default:
		return "invalid"
	}
}

// OutputType identifies which of a tool's verbs produced a piece of output.
type OutputType uint8

const (
	InfoOutput OutputType = iota + 1
	ListOutput
	CoreStorageListOutput
	MountOutput
)

func (o OutputType) String() string {
	switch o {
	case InfoOutput:
		return "info"
	case ListOutput:
		return "list"
	case CoreStorageListOutput:
		return "cs list"
	case MountOutput:
		return "mount"
	default:
		return "unknown"
	}
}

// ErrInvalidOutputTool identifies output attributed to a tool the parser does not know.
var ErrInvalidOutputTool = errors.New("invalid output tool")

// InvalidOutputError identifies an output type which the tool never produces.
type InvalidOutputError struct {
	Tool   ToolType
	Output OutputType
}

func (e *InvalidOutputError) Error() string {
	return fmt.Sprintf("invalid output %q for tool %s", e.Output, e.Tool)
}

// ParseFailedError identifies output that could not be decoded into the requested record. Raw holds the
// offending output so that it can be captured in logs.
type ParseFailedError struct {
	Reason string
	Raw    string
}

func (e *ParseFailedError) Error() string {
	return fmt.Sprintf("parse failed: %s", e.Reason)
}

// Parser outlines the functionality necessary for decoding plist output from the macOS diskutil and hdiutil
// commands.
type Parser interface {
	// Parse decodes raw into the record registered for the tool and output pair.
	Parse(raw string, tool ToolType, output OutputType) (types.Output, error)
}

const (
	binaryPlistMagic = "bplist"
	xmlPlistEnd      = "</plist>"
)

// PlistParser is an empty struct that provides the implementation for the Parser interface.
type PlistParser struct{}

// Type assertion to ensure PlistParser implements the Parser interface.
var _ Parser = (*PlistParser)(nil)

// Parse takes a string containing raw plist data and decodes it into the record matching the tool and output
// types. Decoder failures, including panics raised by the decoder, are reported as *ParseFailedError.
func (p *PlistParser) Parse(raw string, tool ToolType, output OutputType) (out types.Output, err error) {
	target, err := outputFor(tool, output)
	if err != nil {
		return nil, err
	}

	// Catch panics thrown by the Decode method
	defer func() {
		if panicErr := recover(); panicErr != nil {
			out = nil
			err = &ParseFailedError{Reason: fmt.Sprintf("panic occurred while decoding %s output: %v", target.Command(), panicErr), Raw: raw}
		}
	}()

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &ParseFailedError{Reason: fmt.Sprintf("empty %s output", target.Command()), Raw: raw}
	}

	// The decoder returns as soon as the root value is complete, so a document cut before its closing tag
	// would otherwise decode.
	if !strings.HasPrefix(trimmed, binaryPlistMagic) && !strings.HasSuffix(trimmed, xmlPlistEnd) {
		return nil, &ParseFailedError{Reason: fmt.Sprintf("truncated %s output", target.Command()), Raw: raw}
	}

	// Decode the plist output into the typed record for easier access
	decoder := plist.NewDecoder(strings.NewReader(raw))
	if err := decoder.Decode(target); err != nil {
		return nil, &ParseFailedError{Reason: fmt.Sprintf("failed to decode %s output: %v", target.Command(), err), Raw: raw}
	}

	if err := target.Validate(); err != nil {
		return nil, &ParseFailedError{Reason: fmt.Sprintf("unexpected %s output: %v", target.Command(), err), Raw: raw}
	}

	return target, nil
}

// outputFor allocates the record registered for the tool and output pair.
func outputFor(tool ToolType, output OutputType) (types.Output, error) {
	switch tool {
	case DiskUtilityTool:
		switch output {
		case InfoOutput:
			return &types.DiskInfo{}, nil
		case ListOutput:
			return &types.DiskList{}, nil
		case CoreStorageListOutput:
			return &types.CoreStorageList{}, nil
		}
	case HDIUtilTool:
		if output == MountOutput {
			return &types.MountResult{}, nil
		}
	default:
		return nil, ErrInvalidOutputTool
	}

	return nil, &InvalidOutputError{Tool: tool, Output: output}
}

// ParseList decodes "diskutil list -plist" output.
func ParseList(p Parser, raw string) (*types.DiskList, error) {
	out, err := p.Parse(raw, DiskUtilityTool, ListOutput)
	if err != nil {
		return nil, err
	}

	return out.(*types.DiskList), nil
}

// ParseInfo decodes "diskutil info -plist" output.
func ParseInfo(p Parser, raw string) (*types.DiskInfo, error) {
	out, err := p.Parse(raw, DiskUtilityTool, InfoOutput)
	if err != nil {
		return nil, err
	}

	return out.(*types.DiskInfo), nil
}

// ParseCoreStorageList decodes "diskutil cs list -plist" output.
func ParseCoreStorageList(p Parser, raw string) (*types.CoreStorageList, error) {
	out, err := p.Parse(raw, DiskUtilityTool, CoreStorageListOutput)
	if err != nil {
		return nil, err
	}

	return out.(*types.CoreStorageList), nil
}

// ParseMount decodes "hdiutil mount -plist" output.
func ParseMount(p Parser, raw string) (*types.MountResult, error) {
	out, err := p.Parse(raw, HDIUtilTool, MountOutput)
	if err != nil {
		return nil, err
	}

	return out.(*types.MountResult), nil
}
