package age

import "time"

// DateLayout is the wire format for birth dates.
const DateLayout = "2006-01-02"

// Band is an inclusive age range.
type Band struct {
	Min int
	Max int
}

// Contains reports whether the given age falls inside the band.
// INVARIANT: Band fields are not mutated
func (b Band) Contains(age int) bool {
	return age >= b.Min && age <= b.Max
}

// Age computes the age in whole years on the reference date.
// The year difference is reduced by one when the (month, day) pair of the
// reference date sorts before the (month, day) pair of the birth date, i.e.
// the birthday has not yet been reached in the reference year. This
// comparison decides camp eligibility and must not be replaced by a
// duration-based calculation.
// PRE: birthDate is expected in YYYY-MM-DD form
// POST: Returns (age, true) on success; (0, false) if birthDate does not parse
func Age(birthDate string, reference time.Time) (int, bool) {
	birth, err := time.Parse(DateLayout, birthDate)
	if err != nil {
		return 0, false
	}

	years := reference.Year() - birth.Year()
	refM, refD := int(reference.Month()), reference.Day()
	birthM, birthD := int(birth.Month()), birth.Day()
	if refM < birthM || (refM == birthM && refD < birthD) {
		years--
	}
	return years, true
}
