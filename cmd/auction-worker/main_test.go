package main

import (
	"testing"

	"github.com/peterldowns/testy/check"
)

func TestNeedsAuditSink(t *testing.T) {
	for _, command := range []string{"run", "post_audit", "check"} {
		check.True(t, needsAuditSink(command))
	}
	for _, command := range []string{"planning", "announce", "cancel", "reschedule", "bogus"} {
		check.False(t, needsAuditSink(command))
	}
}
