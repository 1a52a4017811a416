/*
Copyright © 2026 the Graffiti City authors.
This file is part of Graffiti City.

Graffiti City is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

Graffiti City is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with Graffiti City.  If not, see <http://www.gnu.org/licenses/>.
*/

// Command graffitiweb serves a web form for configuring and running the
// graffiti commands.
package main

import (
	"time"

	"github.com/floraaa826/Graffiti-City/graffitiutil"
	"github.com/sirupsen/logrus"
)

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339Nano,
		DisableSorting:  true,
	})
}

func main() {
	graffitiutil.StartWebServer()
}
