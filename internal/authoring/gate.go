package authoring

import "course_studio_backend/internal/model"

type GateIssue struct {
	ContentID  string                `json:"contentId"`
	Title      string                `json:"title"`
	Status     model.CopyrightStatus `json:"status"`
	Violations []string              `json:"violations,omitempty"`
	Warnings   []string              `json:"warnings,omitempty"`
}

type GateResult struct {
	Allowed bool        `json:"allowed"`
	Issues  []GateIssue `json:"issues,omitempty"`
}

// CheckPublish 付费课程发布前所有内容必须版权检查通过；免费课程或非发布目标直接放行
func CheckPublish(basics model.CourseBasics, target model.CourseStatus, contents []model.CourseContent) GateResult {
	if target != model.CoursePublished || !basics.IsPaid() {
		return GateResult{Allowed: true}
	}
	var issues []GateIssue
	for _, c := range contents {
		if c.Copyright.Clear() {
			continue
		}
		status := c.Copyright.Status
		if status == model.CopyrightUnchecked {
			status = model.CopyrightPending
		}
		issues = append(issues, GateIssue{
			ContentID:  c.DocumentID,
			Title:      c.Title,
			Status:     status,
			Violations: c.Copyright.Violations,
			Warnings:   c.Copyright.Warnings,
		})
	}
	return GateResult{Allowed: len(issues) == 0, Issues: issues}
}
