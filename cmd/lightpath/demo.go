package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/lightpath-ai/lightpath/ai"
	"github.com/lightpath-ai/lightpath/ai/metrics"
	"github.com/lightpath-ai/lightpath/ai/profiling"
	"github.com/lightpath-ai/lightpath/ai/recommend"
	"github.com/lightpath-ai/lightpath/internal/errclass"
	"github.com/lightpath-ai/lightpath/scheduling"
	"github.com/lightpath-ai/lightpath/store"
)

// demoSession drives one end-to-end run on the terminal: seed the
// catalog if it is empty, interview the learner, persist the profile,
// print recommendations and propose a first mentor session.
type demoSession struct {
	store       *store.Store
	embedder    ai.EmbeddingService
	interviews  *profiling.Manager
	recommender recommend.Service
	exporter    *metrics.PrometheusExporter
	model       string
	userID      int32
	age         int
	topK        int
}

func (s *demoSession) run(ctx context.Context) error {
	if err := s.seedCatalog(ctx); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}

	completed, err := s.interview(ctx)
	if err != nil {
		return fmt.Errorf("interview: %w", err)
	}

	if _, err := s.recommender.SaveProfile(ctx, completed); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}

	recommendations, err := s.recommender.Recommend(ctx, recommend.Request{UserID: s.userID, K: s.topK})
	if err != nil {
		return fmt.Errorf("recommend: %w", err)
	}
	s.printRecommendations(recommendations)

	for _, r := range recommendations {
		if r.Kind == recommend.KindMentor {
			return s.proposeSession(ctx, r)
		}
	}
	return nil
}

// interview runs the profiling dialogue on stdin.
func (s *demoSession) interview(ctx context.Context) (*profiling.CompletedProfile, error) {
	sess, err := s.interviews.StartSession(ctx, s.userID, s.age)
	if err != nil {
		return nil, err
	}

	transcript := sess.Transcript()
	question := transcript[len(transcript)-1].Content

	fmt.Println("Let's find your path. Answer a few questions:")
	scanner := bufio.NewScanner(os.Stdin)
	for step := 1; ; step++ {
		fmt.Printf("\n%d/%d %s\n> ", step, ai.InterviewSteps, question)
		answer := ""
		for answer == "" {
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return nil, err
				}
				return nil, errors.New("interview aborted: stdin closed")
			}
			answer = strings.TrimSpace(scanner.Text())
			if answer == "" {
				fmt.Print("> ")
			}
		}

		turn, err := s.interviews.SubmitAnswer(ctx, sess.ID, step, answer)
		if err != nil {
			return nil, err
		}
		if turn.Profile != nil {
			fmt.Printf("\nGot it. Your profile: %s\n", turn.Profile.ProfileText)
			return turn.Profile, nil
		}
		question = turn.Question
	}
}

func (s *demoSession) printRecommendations(recommendations []recommend.Recommendation) {
	if len(recommendations) == 0 {
		fmt.Println("\nNo matches yet. The catalog may still be empty.")
		return
	}

	fmt.Printf("\nTop matches for you:\n")
	for i, r := range recommendations {
		label := "opportunity"
		if r.Kind == recommend.KindMentor {
			label = "mentor"
		}
		fmt.Printf("%2d. [%s] %s (score %.2f)\n", i+1, label, r.Title, r.Score)
		if r.Summary != "" {
			fmt.Printf("      %s\n", r.Summary)
		}
		if len(r.Reasons) > 0 {
			fmt.Printf("      why: %s\n", strings.Join(r.Reasons, ", "))
		}
	}
}

// proposeSession finds a first meeting slot with the recommended mentor
// and commits it as a pending booking. A conflicting commit excludes the
// taken slot and retries the search.
func (s *demoSession) proposeSession(ctx context.Context, mentor recommend.Recommendation) error {
	hours := scheduling.WorkingHours{StartMinute: 9 * 60, EndMinute: 18 * 60}
	calendars := scheduling.NewStoreCalendars(s.store)
	now := time.Now()
	window := scheduling.Interval{
		Start: now.Unix(),
		End:   now.AddDate(0, 0, scheduling.DefaultHorizonDays).Unix(),
	}

	var exclude []scheduling.Interval
	for attempt := 0; attempt < 3; attempt++ {
		mentorCalendar, err := calendars.MentorCalendar(ctx, mentor.EntityID, hours, window)
		if err != nil {
			return fmt.Errorf("mentor calendar: %w", err)
		}
		learnerCalendar, err := calendars.LearnerCalendar(ctx, s.userID, hours, window)
		if err != nil {
			return fmt.Errorf("learner calendar: %w", err)
		}

		searchStart := time.Now()
		slot, err := scheduling.FindSlot(ctx, mentorCalendar, learnerCalendar, scheduling.Request{
			From:        now,
			Preferences: scheduling.Preferences{TimeOfDay: scheduling.TimeOfDayAfternoon},
			Exclude:     exclude,
		})
		if s.exporter != nil {
			s.exporter.RecordSlotSearch(time.Since(searchStart), slotSearchStatus(err))
		}
		if errors.Is(err, scheduling.ErrNoSlotFound) {
			fmt.Printf("\n%s has no free slot in the next %d days.\n", mentor.Title, scheduling.DefaultHorizonDays)
			return nil
		}
		if err != nil {
			return fmt.Errorf("find slot: %w", err)
		}

		booking, err := s.store.CreateBooking(ctx, scheduling.ProposeBooking(slot, mentor.EntityID, s.userID))
		if err != nil {
			if classified := errclass.Classify(err); classified.IsConflict() {
				exclude = append(exclude, slot.Interval())
				continue
			}
			return fmt.Errorf("create booking: %w", err)
		}

		fmt.Printf("\nProposed session with %s: %s (booking %s, pending)\n",
			mentor.Title,
			slot.Start.Format("Mon Jan 2 15:04 MST"),
			booking.ID)
		return nil
	}
	return errors.New("could not commit a slot: every proposal conflicted")
}

func slotSearchStatus(err error) string {
	switch {
	case err == nil:
		return "found"
	case errors.Is(err, scheduling.ErrNoSlotFound):
		return "none"
	default:
		return "error"
	}
}

// seedCatalog loads a small demo catalog on first run so recommendations
// have something to match against.
func (s *demoSession) seedCatalog(ctx context.Context) error {
	one := 1
	existing, err := s.store.ListOpportunities(ctx, &store.FindOpportunity{Limit: &one})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	opportunities := []*store.Opportunity{
		{Title: "Intro to Robotics", Description: "Build and program your first robot with motors, sensors and a microcontroller. No experience needed.", Type: store.OpportunityTypeCourse, Difficulty: store.DifficultyBeginner, CategoryID: 1, IsActive: true, EnrollmentsCount: 420},
		{Title: "Creative Coding with Generative Art", Description: "Draw with code. Loops, randomness and color turned into animated posters and interactive sketches.", Type: store.OpportunityTypeCourse, Difficulty: store.DifficultyBeginner, CategoryID: 2, IsActive: true, EnrollmentsCount: 310},
		{Title: "Game Design Workshop", Description: "Prototype a playable game level in a weekend. Mechanics, playtesting and iteration with a small team.", Type: store.OpportunityTypeWorkshop, Difficulty: store.DifficultyIntermediate, CategoryID: 2, IsActive: true, EnrollmentsCount: 150},
		{Title: "Data Science for Climate", Description: "Analyze real climate datasets with Python. Statistics, visualization and an open-data capstone project.", Type: store.OpportunityTypeCourse, Difficulty: store.DifficultyIntermediate, CategoryID: 3, IsActive: true, EnrollmentsCount: 200},
		{Title: "Junior Web Developer Internship", Description: "Three-month paid internship building accessible web interfaces alongside a product team.", Type: store.OpportunityTypeJob, Difficulty: store.DifficultyAdvanced, CategoryID: 2, IsActive: true, EnrollmentsCount: 45},
		{Title: "Music Production Basics", Description: "Compose, record and mix your first track with a digital audio workstation.", Type: store.OpportunityTypeCourse, Difficulty: store.DifficultyBeginner, CategoryID: 4, IsActive: true, EnrollmentsCount: 260},
	}
	mentors := []*store.Mentor{
		{DisplayName: "Ada Okafor", Bio: "Robotics engineer who loves first-time builders. Helped 40+ teens ship their first robot.", Skills: []string{"robotics", "electronics", "python"}, Tier: store.MentorTierGold, Timezone: "Europe/Berlin", IsActive: true, SessionsCount: 180},
		{DisplayName: "Marco Díaz", Bio: "Indie game developer and teacher. Focused on design thinking and rapid prototyping.", Skills: []string{"game design", "unity", "storytelling"}, Tier: store.MentorTierSilver, Timezone: "America/Mexico_City", IsActive: true, SessionsCount: 95},
		{DisplayName: "Priya Raman", Bio: "Data scientist working on climate models. Patient with beginners, rigorous with projects.", Skills: []string{"python", "statistics", "climate"}, Tier: store.MentorTierPlatinum, Timezone: "Asia/Kolkata", IsActive: true, SessionsCount: 240},
		{DisplayName: "Jonas Weber", Bio: "Producer and sound designer. Teaches music production from the first loop to a finished track.", Skills: []string{"music production", "mixing"}, Tier: store.MentorTierBronze, Timezone: "Europe/Berlin", IsActive: true, SessionsCount: 30},
	}

	texts := make([]string, 0, len(opportunities)+len(mentors))
	for _, o := range opportunities {
		texts = append(texts, o.Title+". "+o.Description)
	}
	for _, m := range mentors {
		texts = append(texts, m.DisplayName+". "+m.Bio+" Skills: "+strings.Join(m.Skills, ", "))
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed catalog: %w", err)
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("embed catalog: got %d vectors for %d texts", len(vectors), len(texts))
	}

	for i, o := range opportunities {
		created, err := s.store.CreateOpportunity(ctx, o)
		if err != nil {
			return err
		}
		if _, err := s.store.UpsertOpportunityEmbedding(ctx, &store.OpportunityEmbedding{
			OpportunityID: created.ID,
			Model:         s.model,
			Embedding:     vectors[i],
		}); err != nil {
			return err
		}
	}
	for i, m := range mentors {
		created, err := s.store.CreateMentor(ctx, m)
		if err != nil {
			return err
		}
		if _, err := s.store.UpsertMentorEmbedding(ctx, &store.MentorEmbedding{
			MentorID:  created.ID,
			Model:     s.model,
			Embedding: vectors[len(opportunities)+i],
		}); err != nil {
			return err
		}
	}

	fmt.Println("Seeded the demo catalog: 6 opportunities, 4 mentors.")
	return nil
}
