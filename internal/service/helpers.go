package service

import (
	"fmt"
	"time"

	"calbook/internal/database"
	"calbook/internal/models"
)

func errValidation(msg string) error {
	return fmt.Errorf("%w: %s", database.ErrValidation, msg)
}

func loadLocation(tz string) (*time.Location, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, errValidation("unknown timezone " + tz)
	}
	return loc, nil
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(models.DateFormat, s)
}
