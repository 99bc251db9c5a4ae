package mapdata

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "mapdata")
