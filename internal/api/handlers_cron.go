/**
 * @description
 * This file contains the HTTP handlers for the scheduled sweep endpoints. An
 * external scheduler (cron) calls these with a shared bearer secret; they run
 * the idempotent overdue and due-reminder sweeps and report what was touched.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries.
 */

package api

import (
	"log"
	"net/http"
)

// CheckOverdueHandler runs the overdue sweep: transactions past due are flagged
// and their borrowers warned. Safe to call repeatedly.
func (h *CupHandlers) CheckOverdueHandler(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.CheckOverdue(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=check_overdue outcome=failed err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	log.Printf("level=info component=api endpoint=check_overdue outcome=success found=%d processed=%d", result.Found, result.Processed)
	h.writeJSON(w, http.StatusOK, result)
}

// DueRemindersHandler runs the due-soon reminder sweep. Reminders are deduped
// per transaction, so overlapping scheduler runs do not double-notify.
func (h *CupHandlers) DueRemindersHandler(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.SendDueReminders(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=due_reminders outcome=failed err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	log.Printf("level=info component=api endpoint=due_reminders outcome=success found=%d processed=%d", result.Found, result.Processed)
	h.writeJSON(w, http.StatusOK, result)
}
