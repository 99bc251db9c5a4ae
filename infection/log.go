package infection

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "infection")
