/*
Copyright (c) the go-otp authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package protocol

// FolioKey identifies an independent folio/page sequence. The consumer
// keys transform reassembly by (CID, system) and advertisement
// reassembly by (CID, advertisement kind); both map down to FolioKey.
type FolioKey struct {
	CID  CID
	Kind uint8 // caller-defined: e.g. a system number, or an advertisement vector
}

type folioState struct {
	folio    uint32
	nextPage uint16
	lastPage uint16
	pages    [][]byte
}

// FolioReassembler reassembles a page sequence belonging to one folio
// into its constituent page payloads, in order. A missed page aborts and
// discards the in-progress folio (FolioReassemblyAborted, an internal
// statistic per the spec, never surfaced to the application).
type FolioReassembler struct {
	inFlight map[FolioKey]*folioState
	aborted  int64
}

// NewFolioReassembler returns an empty reassembler.
func NewFolioReassembler() *FolioReassembler {
	return &FolioReassembler{inFlight: make(map[FolioKey]*folioState)}
}

// Aborted returns the number of folios discarded so far due to a missed
// page.
func (f *FolioReassembler) Aborted() int64 { return f.aborted }

// Accept feeds one page of a folio into the reassembler. complete is
// non-nil only once the final page (page == lastPage) of a folio has
// arrived in order; its slices are the page payloads in page order.
func (f *FolioReassembler) Accept(key FolioKey, folio uint32, page, lastPage uint16, payload []byte) (complete [][]byte) {
	st, ok := f.inFlight[key]

	if page == 0 {
		// A page 0 always (re)starts a folio: either this is the first
		// page we've seen for key, or it's a newer folio superseding an
		// in-progress one (the previous folio's missing pages will never
		// arrive now, so it is abandoned, not "aborted" as a statistic —
		// it simply never completed).
		if ok && !folioLess(st.folio, folio) && st.folio != folio {
			// incoming folio is circularly older than what's in flight: stale duplicate, drop.
			return nil
		}
		st = &folioState{folio: folio, nextPage: 0, lastPage: lastPage}
		f.inFlight[key] = st
	}

	if !ok || st.folio != folio {
		// a non-zero page arrived with no matching folio in flight, or
		// for a folio we're not tracking: nothing to attach it to.
		if page != 0 {
			return nil
		}
		st = f.inFlight[key]
	}

	if page != st.nextPage {
		// missed page: abort and discard.
		delete(f.inFlight, key)
		f.aborted++
		return nil
	}

	st.pages = append(st.pages, payload)
	st.nextPage++

	if st.nextPage > st.lastPage {
		complete = st.pages
		delete(f.inFlight, key)
	}
	return complete
}
