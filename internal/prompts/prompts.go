// Package prompts assembles generation request text from structured inputs.
// Everything here is pure: no I/O, no clock, no provider calls.
package prompts

import (
	"fmt"
	"strings"
)

// ScopeSystemPrompt frames the model as a product studio architect and pins
// the shape of the breakdown it must produce.
const ScopeSystemPrompt = "You are an experienced product manager and software architect at a product " +
	"development studio. Your job is to take a startup idea and break it into a " +
	"structured engineering scope.\n\n" +
	"Generate a comprehensive scope with:\n" +
	"- 4 to 8 epics, each with 3 to 6 user stories\n" +
	"- Realistic effort estimates in working days\n" +
	"- A suggested tech stack appropriate for the idea\n" +
	"- A total timeline estimate in weeks\n" +
	"- 3 to 5 identified risks with severity ratings\n\n" +
	"Make user stories follow the format: " +
	"\"As a [user], I want [action] so that [outcome]\"."

const executiveSummarySystem = "You are a senior project manager writing a weekly status report for " +
	"a client. Write in professional prose, 3-4 paragraphs. Be specific — " +
	"use actual milestone names and update content. Cover: overall " +
	"progress, key accomplishments this week, current blockers (if any), " +
	"and recommended next steps. Never use bullet points in your response " +
	"— write in full paragraphs only."

const technicalSummarySystem = "You are a senior engineering lead writing an internal weekly status " +
	"report for the development team. Write in professional prose, 3-4 " +
	"paragraphs. Be specific — use actual milestone names and update " +
	"content. Cover: overall progress, key technical accomplishments this " +
	"week, current blockers (if any), and recommended next steps. " +
	"Never use bullet points — write in full paragraphs only."

// BuildScopePrompt renders the user prompt for scope generation. Optional
// fields contribute one line each only when present; timeline pressure
// underscores are rendered as spaces.
func BuildScopePrompt(productName, ideaText, targetAudience, budgetRange, timelinePressure string) string {
	parts := []string{
		fmt.Sprintf("Product: %s.", productName),
		fmt.Sprintf("Idea: %s.", ideaText),
	}
	if targetAudience != "" {
		parts = append(parts, fmt.Sprintf("Audience: %s.", targetAudience))
	}
	if budgetRange != "" {
		parts = append(parts, fmt.Sprintf("Budget: %s.", budgetRange))
	}
	if timelinePressure != "" {
		parts = append(parts, fmt.Sprintf("Timeline: %s.", strings.ReplaceAll(timelinePressure, "_", " ")))
	}
	return strings.Join(parts, "\n")
}

// BuildSummaryPrompt renders the system and user prompts for weekly summary
// generation. Exactly two system templates exist, selected by tone; they
// differ only in audience framing.
func BuildSummaryPrompt(projectName, description, weekStart, milestoneStatuses, updatesFormatted, tone string) (system, user string) {
	if tone == "technical" {
		system = technicalSummarySystem
	} else {
		system = executiveSummarySystem
	}

	user = fmt.Sprintf(
		"Project: %s.\nDescription: %s.\nWeek of: %s.\n\nMilestone statuses:\n%s\n\nUpdates this week:\n%s",
		projectName, description, weekStart, milestoneStatuses, updatesFormatted,
	)

	return system, user
}
