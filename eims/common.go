package eims

import (
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "eims")
