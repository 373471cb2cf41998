package model

import (
	"fmt"
	"strings"
)

//go:generate stringer -type=Severity
type Severity int16

const (
	// [ZERO_VALUE_GUARD] WE START FROM 1 TO DISTINGUISH FROM UNINITIALIZED DATA
	SeverityInfo Severity = iota + 1
	SeverityWarn
	SeverityError
	SeverityFatal
)

var severityNames = map[Severity]string{
	SeverityInfo:  "INFO",
	SeverityWarn:  "WARN",
	SeverityError: "ERROR",
	SeverityFatal: "FATAL",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Severity(%d)", int16(s))
}

// ParseSeverity resolves a severity by its name, case-insensitively.
func ParseSeverity(name string) (Severity, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for s, n := range severityNames {
		if n == upper {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown severity %q", name)
}

func (s Severity) MarshalText() ([]byte, error) {
	if _, ok := severityNames[s]; !ok {
		return nil, fmt.Errorf("cannot marshal severity %d", int16(s))
	}
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// [MESSAGE] A USER-FACING NOTIFICATION, IDENTIFIED BY ITS USE CASE
type Message struct {
	// UseCaseID is the de-duplication key: two messages with the same
	// use case are the same logical message.
	UseCaseID            string         `json:"use_case_id"`
	Severity             Severity       `json:"severity"`
	Causes               []MessageCause `json:"causes,omitempty"`
	OpenPopupImmediately bool           `json:"open_popup_immediately,omitempty"`
}

// ShouldPopup reports whether the message must open the cause dialog
// without waiting for a user selection.
func (m Message) ShouldPopup() bool {
	return m.OpenPopupImmediately || m.Severity == SeverityFatal
}

// Clone returns a copy that shares no cause storage with m.
func (m Message) Clone() Message {
	m.Causes = CloneCauses(m.Causes)
	return m
}

// MessageCause explains why a message occurred. Treat it as a value:
// causes are appended to a message, never edited.
type MessageCause struct {
	MessageID             string   `json:"message_id,omitempty"`
	Category              string   `json:"category,omitempty"`
	Cause                 string   `json:"cause,omitempty"`
	Origin                string   `json:"origin,omitempty"`
	Remediation           string   `json:"remediation,omitempty"`
	CauseParameters       []string `json:"cause_parameters,omitempty"`
	RemediationParameters []string `json:"remediation_parameters,omitempty"`
	TechnicalID           string   `json:"technical_id,omitempty"`
	TechnicalText         string   `json:"technical_text,omitempty"`
}

// CloneCauses deep-copies a cause sequence, preserving order and nil-ness.
func CloneCauses(causes []MessageCause) []MessageCause {
	if causes == nil {
		return nil
	}
	res := make([]MessageCause, len(causes))
	for i, c := range causes {
		c.CauseParameters = cloneStrings(c.CauseParameters)
		c.RemediationParameters = cloneStrings(c.RemediationParameters)
		res[i] = c
	}
	return res
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
