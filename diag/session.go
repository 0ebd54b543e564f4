// Copyright (c) 2024 The hwkit Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.
package diag

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// SessionId is the one piece of process-wide shared state spec §5 allows:
// "a SessionId allocator for diagnostics (process-wide monotonic counter,
// reset-safe)". Ordinal is the monotonic, in-process ordering key;
// External is a v4 UUID stamped once per session so diagnostics from
// concurrent hwkit processes (e.g. a build farm running many compiles)
// can be told apart in aggregated logs without a shared counter across
// processes.
type SessionId struct {
	Ordinal  uint64
	External uuid.UUID
}

var sessionCounter uint64

// NewSession allocates the next SessionId. Safe to call from multiple
// goroutines, though the compiler itself is single-threaded cooperative
// (spec §5) — callers embedding hwkit in a concurrent host are the reason
// this uses atomic increment rather than a bare package-level int.
func NewSession() SessionId {
	ord := atomic.AddUint64(&sessionCounter, 1)
	return SessionId{Ordinal: ord, External: uuid.New()}
}

// ResetSessionCounterForTest resets the monotonic ordinal to zero; tests
// that assert on exact ordinal values use this to get a clean start
// ("reset-safe" per spec §5).
func ResetSessionCounterForTest() {
	atomic.StoreUint64(&sessionCounter, 0)
}

func (s SessionId) String() string {
	return s.External.String()
}
