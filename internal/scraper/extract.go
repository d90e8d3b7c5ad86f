package scraper

import (
	"log"
	"time"

	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/model"
	"github.com/wataru-taketani/feelcycle-hub-sub000/internal/parse"
)

// DOM selectors for the reservation site. Treated as an external,
// versioned contract; the site may break them without notice.
const (
	selStudioList  = "ul.address_list > li"
	selDateHeaders = ".header-sc-list .content .days"
)

// extractScheduleJS reads the full schedule grid in one pass: every date
// header plus every class block per date column. The site renders all
// upcoming dates at once, so one evaluation bounds total latency.
const extractScheduleJS = `(() => {
	const days = Array.from(document.querySelectorAll('.header-sc-list .content .days'))
		.map(e => e.textContent.trim());
	const columns = Array.from(document.querySelectorAll('.sc_list.active > .content'))
		.map(col => Array.from(col.querySelectorAll('.lesson.overflow_hidden')).map(l => {
			const text = sel => { const n = l.querySelector(sel); return n ? n.textContent.trim() : ''; };
			return {
				time: text('.time'),
				name: text('.lesson_name'),
				instructor: text('.instructor'),
				status: text('.status'),
				full: l.classList.contains('seat-disabled'),
			};
		}));
	return { days, columns };
})()`

// listStudiosJS reads every entry of the studio selector list.
const listStudiosJS = `(() =>
	Array.from(document.querySelectorAll('ul.address_list > li'))
		.map(e => e.textContent.trim())
)()`

type rawLesson struct {
	Time       string `json:"time"`
	Name       string `json:"name"`
	Instructor string `json:"instructor"`
	Status     string `json:"status"`
	Full       bool   `json:"full"`
}

type rawSchedule struct {
	Days    []string      `json:"days"`
	Columns [][]rawLesson `json:"columns"`
}

// mapSchedule turns one raw extraction pass into lesson records for the
// given studio. Unparseable entries are logged and skipped rather than
// failing the whole pass.
func mapSchedule(studioCode string, raw rawSchedule, now time.Time, loc *time.Location) []model.Lesson {
	n := len(raw.Days)
	if len(raw.Columns) < n {
		n = len(raw.Columns)
	}
	if len(raw.Days) != len(raw.Columns) {
		log.Printf("Warning: studio %s: %d date headers but %d columns; using first %d",
			studioCode, len(raw.Days), len(raw.Columns), n)
	}

	var lessons []model.Lesson
	for i := 0; i < n; i++ {
		date, err := parse.DateLabel(raw.Days[i], now, loc)
		if err != nil {
			log.Printf("Warning: studio %s: skipping column %d: %v", studioCode, i, err)
			continue
		}
		dateStr := date.Format("2006-01-02")

		for _, rl := range raw.Columns[i] {
			start, end, err := parse.TimeRange(rl.Time)
			if err != nil {
				log.Printf("Warning: studio %s %s: skipping lesson %q: %v", studioCode, dateStr, rl.Name, err)
				continue
			}

			startHour, startMin := hhmm(start)
			startsAt := time.Date(date.Year(), date.Month(), date.Day(), startHour, startMin, 0, 0, loc)

			status := rl.Status
			if rl.Full && status == "" {
				status = "満席"
			}

			lessons = append(lessons, model.Lesson{
				StudioCode: studioCode,
				StartsAt:   startsAt,
				LessonDate: dateStr,
				StartTime:  start,
				EndTime:    end,
				Name:       rl.Name,
				Instructor: rl.Instructor,
				StatusText: status,
				Available:  !rl.Full && parse.Available(status),
				Program:    parse.Program(rl.Name),
			})
		}
	}
	return lessons
}

func hhmm(s string) (hour, min int) {
	// s is validated HH:MM from parse.TimeRange
	hour = int(s[0]-'0')*10 + int(s[1]-'0')
	min = int(s[3]-'0')*10 + int(s[4]-'0')
	return hour, min
}
