// Package correlation tracks the most recently observed outbound command so
// agent responses can be told apart from unsolicited agent events.
//
// A single Slot is shared by the broker manager (the only writer) and the
// agent link manager (the only reader). Only the last command is
// remembered: if a second command is sent before the first one's response
// arrives, the first response is classified as a report. This matches the
// behaviour remote clients already depend on.
package correlation
