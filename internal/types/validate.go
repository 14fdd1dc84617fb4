// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package types

import "math"

// ValidateEvent normalises and checks an Event in place, generating an
// EventID if absent. It implements step 1 of Ingest's algorithm (spec.md
// §4.2): non-empty event_id, finite timestamp, recognised role/type,
// lowercase agent.
func ValidateEvent(e *Event) error {
	if e.TimestampMs == 0 || math.IsNaN(float64(e.TimestampMs)) {
		return NewError("ingest", "validate", "timestamp_ms must be a finite, non-zero value", CodeInvalidArgument, nil)
	}
	if e.EventID == "" {
		e.EventID = NewEventID(e.TimestampMs)
	}
	if !e.Role.Valid() {
		return NewError("ingest", "validate", "unrecognised role: "+string(e.Role), CodeInvalidArgument, nil)
	}
	if !e.EventType.Valid() {
		return NewError("ingest", "validate", "unrecognised event_type: "+string(e.EventType), CodeInvalidArgument, nil)
	}
	e.Agent = NormalizeAgent(e.Agent)
	return nil
}

// ClampSalience clamps a salience score into [0, 1], per spec.md §4.10.
func ClampSalience(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
